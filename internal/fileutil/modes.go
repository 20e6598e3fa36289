package fileutil

import "os"

// Owner-only modes.
const (
	DirMode  os.FileMode = 0700
	FileMode os.FileMode = 0600
)

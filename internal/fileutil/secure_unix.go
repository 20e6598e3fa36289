//go:build !windows

// Package fileutil creates owner-only directories and files for the index
// database, which holds full message bodies.
//
// On Unix these are plain mode bits and do not guard against symlink
// traversal or races. On Windows a DACL limiting access to the current user
// is applied as well.
package fileutil

import "os"

// MkdirPrivate creates path and any missing parents with mode 0700.
// Directories that already exist keep their mode.
func MkdirPrivate(path string) error {
	return os.MkdirAll(path, DirMode)
}

// ChmodPrivate sets the mode of an existing file to 0600.
func ChmodPrivate(path string) error {
	return os.Chmod(path, FileMode)
}

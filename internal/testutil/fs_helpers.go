package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to dir/name, creating parent directories. name is
// slash-separated and must stay inside dir.
func WriteFile(t testing.TB, dir, name string, content []byte) string {
	t.Helper()

	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		t.Fatalf("WriteFile: %q escapes %s", name, dir)
	}

	path := filepath.Join(dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

// WriteCorpus writes each folder/seq -> raw message pair under root.
func WriteCorpus(t testing.TB, root string, files map[string][]byte) {
	t.Helper()
	for name, raw := range files {
		WriteFile(t, root, name, raw)
	}
}

// MustExist fails the test if the path does not exist.
func MustExist(t testing.TB, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

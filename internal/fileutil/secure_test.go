package fileutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestMkdirPrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")

	if err := MkdirPrivate(path); err != nil {
		t.Fatalf("MkdirPrivate: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
	if runtime.GOOS != "windows" {
		// umask can only remove bits.
		if got := info.Mode().Perm(); got&^DirMode != 0 {
			t.Errorf("perm = %04o, has bits beyond %04o", got, DirMode)
		}
	}

	// Existing directories are accepted.
	if err := MkdirPrivate(path); err != nil {
		t.Errorf("MkdirPrivate on existing dir: %v", err)
	}
}

func TestChmodPrivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailindex.db")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ChmodPrivate(path); err != nil {
		t.Fatalf("ChmodPrivate: %v", err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if got := info.Mode().Perm(); got != FileMode {
			t.Errorf("perm = %04o, want %04o", got, FileMode)
		}
	}
}

func TestChmodPrivate_Missing(t *testing.T) {
	err := ChmodPrivate(filepath.Join(t.TempDir(), "nope"))
	if !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

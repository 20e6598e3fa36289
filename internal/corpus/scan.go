// Package corpus discovers message files in a one-file-per-message mail tree.
//
// A corpus is a root directory of folders (nested to any depth) whose
// message files are named by a purely numeric sequence number, as written by
// MH and nmh style mail stores.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ErrRootNotFound is returned when the corpus root is missing or is not a
// directory.
var ErrRootNotFound = errors.New("corpus root not found")

// Key identifies a message file within the corpus.
type Key struct {
	Folder string
	Seq    int64
}

// String renders the key as folder/seq.
func (k Key) String() string {
	return k.Folder + "/" + strconv.FormatInt(k.Seq, 10)
}

// WorkItem is one candidate message file.
type WorkItem struct {
	Folder string // Slash-separated directory relative to the root
	Seq    int64
	Path   string // Absolute path of the file
}

// Key returns the identity of the item.
func (w WorkItem) Key() Key {
	return Key{Folder: w.Folder, Seq: w.Seq}
}

// Scan walks root and returns the message files not present in seen, sorted
// by folder then sequence number. Unreadable directories are logged and
// skipped; a missing root is an error wrapping ErrRootNotFound.
func Scan(root string, seen map[Key]bool, logger *slog.Logger) ([]WorkItem, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("corpus scan: abs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootNotFound, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, abs)
	}

	var items []WorkItem
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != abs && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		seq, ok := parseSeq(d.Name())
		if !ok {
			return nil
		}
		item := WorkItem{
			Folder: FolderName(abs, filepath.Dir(path)),
			Seq:    seq,
			Path:   path,
		}
		if seen[item.Key()] {
			return nil
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus scan: walk %s: %w", abs, err)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Folder != items[j].Folder {
			return items[i].Folder < items[j].Folder
		}
		if items[i].Seq != items[j].Seq {
			return items[i].Seq < items[j].Seq
		}
		return items[i].Path < items[j].Path
	})
	return dedupe(items, logger), nil
}

// dedupe drops items whose key repeats an earlier one, as "7" and "007" in
// the same folder do. items must be sorted by key.
func dedupe(items []WorkItem, logger *slog.Logger) []WorkItem {
	out := items[:0]
	for _, item := range items {
		if len(out) > 0 && item.Key() == out[len(out)-1].Key() {
			logger.Warn("skipping file with duplicate key",
				"key", item.Key().String(), "path", item.Path, "kept", out[len(out)-1].Path)
			continue
		}
		out = append(out, item)
	}
	return out
}

// RootFolder labels files directly under the corpus root. No relative
// folder path can take this value.
const RootFolder = "."

// FolderName returns the folder label for dir: its slash-separated path
// relative to root, or RootFolder for files directly under it.
func FolderName(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return RootFolder
	}
	return filepath.ToSlash(rel)
}

// parseSeq accepts names made only of ASCII digits that fit in an int64.
func parseSeq(name string) (int64, bool) {
	if name == "" {
		return 0, false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return 0, false
		}
	}
	seq, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}

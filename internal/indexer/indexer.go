package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/wesm/mailindex/internal/corpus"
	"github.com/wesm/mailindex/internal/store"
)

// ErrRootMismatch is returned when the database already holds messages from
// a different corpus root. Folder identities are relative to the root, so
// two roots cannot share one database.
var ErrRootMismatch = errors.New("database indexes another corpus root")

// Options configures Run.
type Options struct {
	Workers         int
	MaxMessageBytes int64
	Parse           ParseOptions
	Logger          *slog.Logger

	// Progress, if set, receives the number of files parsed so far and the
	// total. It is called from worker goroutines.
	Progress func(done, total int64)
}

// Summary reports the outcome of one Run.
type Summary struct {
	RunID          int64
	FilesFound     int64 // New message files found by the scan
	Parsed         int64
	ParseErrors    int64
	Skipped        int64 // Dropped by the missing-identifier policy
	Rekeyed        int64
	Added          int64 // Rows written
	ParentsCleared int64
	Workers        int
	Duration       time.Duration
}

// Run indexes every message file under root that is not yet stored. Parsing
// runs in parallel; all inserts happen in a single transaction, so a failed
// or cancelled run writes nothing and can simply be repeated.
func Run(ctx context.Context, st *store.Store, root string, opts Options) (*Summary, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	roots, err := st.IndexedRoots()
	if err != nil {
		return nil, err
	}
	for _, r := range roots {
		if r != root {
			return nil, fmt.Errorf("%w: database holds %s, not %s", ErrRootMismatch, r, root)
		}
	}

	seen, err := st.LoadSeen()
	if err != nil {
		return nil, err
	}

	items, err := corpus.Scan(root, seen.Files, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("scan complete", "root", root, "new_files", len(items), "already_indexed", len(seen.Files))

	dopts := DispatchOptions{
		Workers:         opts.Workers,
		MaxMessageBytes: opts.MaxMessageBytes,
		Parse:           opts.Parse,
		Logger:          logger,
	}
	if opts.Progress != nil {
		total := int64(len(items))
		dopts.Progress = func(done int64) { opts.Progress(done, total) }
	}

	batches, dstats, err := Dispatch(ctx, items, dopts)
	if err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	pending, merged := Merge(batches, seen.IDs)

	summary := &Summary{
		FilesFound:  int64(len(items)),
		Parsed:      dstats.Parsed,
		ParseErrors: dstats.Errors,
		Skipped:     dstats.Skipped,
		Rekeyed:     dstats.Rekeyed + int64(merged),
		Workers:     dstats.Workers,
	}
	logger.Info("parse complete",
		"parsed", summary.Parsed, "errors", summary.ParseErrors,
		"skipped", summary.Skipped, "rekeyed", summary.Rekeyed,
		"chunks", dstats.Chunks, "workers", dstats.Workers)

	runID, err := st.StartRun(root)
	if err != nil {
		return nil, err
	}
	summary.RunID = runID

	var wstats WriteStats
	err = st.WithTx(ctx, func(tx *store.Tx) error {
		var werr error
		wstats, werr = Write(ctx, tx, pending, logger)
		return werr
	})
	if err != nil {
		if ferr := st.FailRun(runID, err.Error()); ferr != nil {
			logger.Warn("failed to record run failure", "run", runID, "error", ferr)
		}
		return nil, fmt.Errorf("write records: %w", err)
	}

	summary.Added = int64(wstats.Inserted)
	summary.ParentsCleared = int64(wstats.ParentsCleared)
	summary.Duration = time.Since(start)

	if err := st.CompleteRun(runID, store.RunCounts{
		FilesFound:     summary.FilesFound,
		ParseErrors:    summary.ParseErrors,
		Rekeyed:        summary.Rekeyed,
		ParentsCleared: summary.ParentsCleared,
		MessagesAdded:  summary.Added,
	}); err != nil {
		logger.Warn("failed to record run completion", "run", runID, "error", err)
	}

	logger.Info("index complete", "added", summary.Added,
		"parents_cleared", summary.ParentsCleared, "duration", summary.Duration)
	return summary, nil
}

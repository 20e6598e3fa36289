package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/mailindex/internal/corpus"
)

// DefaultMaxMessageBytes caps the size of a single message file.
const DefaultMaxMessageBytes = 64 << 20

// DispatchOptions configures Dispatch.
type DispatchOptions struct {
	Workers         int   // Parallel units; defaults to runtime.NumCPU()
	MaxMessageBytes int64 // Larger files are counted as errors; defaults to DefaultMaxMessageBytes
	Parse           ParseOptions
	Logger          *slog.Logger

	// Progress, if set, is called after each file with the number of files
	// processed so far. It is called from worker goroutines.
	Progress func(done int64)
}

// DispatchStats summarizes a Dispatch call.
type DispatchStats struct {
	Workers int
	Chunks  int
	Parsed  int64 // Records produced
	Errors  int64 // Files dropped because they could not be read or parsed
	Skipped int64 // Files dropped by the missing-identifier policy
	Rekeyed int64 // Collisions resolved inside a chunk
}

// Dispatch splits items into at most Workers contiguous chunks of
// ceil(n/Workers) items and parses each chunk concurrently. It returns one
// batch per chunk, in chunk order. Per-file failures are logged and counted;
// only context cancellation aborts the call.
func Dispatch(ctx context.Context, items []corpus.WorkItem, opts DispatchOptions) ([]*Batch, DispatchStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxBytes := opts.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}

	stats := DispatchStats{Workers: workers}
	if len(items) == 0 {
		return nil, stats, nil
	}

	chunks := chunk(items, workers)
	stats.Chunks = len(chunks)
	batches := make([]*Batch, len(chunks))

	var parsed, failed, skipped, rekeyed, done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range chunks {
		g.Go(func() error {
			batch := NewBatch()
			for _, item := range part {
				if err := gctx.Err(); err != nil {
					return err
				}

				rec, err := parseFile(gctx, item, maxBytes, opts.Parse)
				switch {
				case err == nil:
					if batch.Add(rec, nil) {
						rekeyed.Add(1)
						logger.Debug("rekeyed duplicate identifier",
							"folder", rec.Folder, "seq", rec.Seq,
							"declared", rec.DeclaredID, "id", rec.ID)
					}
					parsed.Add(1)
				case gctx.Err() != nil:
					return gctx.Err()
				case errors.Is(err, ErrNoMessageID):
					skipped.Add(1)
					logger.Debug("skipping message without identifier", "folder", item.Folder, "seq", item.Seq)
				default:
					failed.Add(1)
					logger.Warn("failed to parse message", "folder", item.Folder, "seq", item.Seq, "error", err)
				}

				n := done.Add(1)
				if opts.Progress != nil {
					opts.Progress(n)
				}
			}
			batches[i] = batch
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	stats.Parsed = parsed.Load()
	stats.Errors = failed.Load()
	stats.Skipped = skipped.Load()
	stats.Rekeyed = rekeyed.Load()
	return batches, stats, nil
}

// chunk splits items into contiguous slices of ceil(n/p) items.
func chunk(items []corpus.WorkItem, p int) [][]corpus.WorkItem {
	if p <= 0 {
		p = 1
	}
	size := (len(items) + p - 1) / p
	if size == 0 {
		return nil
	}
	var out [][]corpus.WorkItem
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

func parseFile(ctx context.Context, item corpus.WorkItem, maxBytes int64, opts ParseOptions) (*Record, error) {
	raw, err := readCapped(item.Path, maxBytes)
	if err != nil {
		return nil, err
	}
	return ParseMessage(ctx, raw, item, opts)
}

func readCapped(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, maxBytes)
	}
	return raw, nil
}

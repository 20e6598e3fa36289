package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wesm/mailindex/internal/store"
)

// MailTx is the part of a store transaction the writer needs.
type MailTx interface {
	MailExists(ctx context.Context, messageID string) (bool, error)
	InsertMail(ctx context.Context, m *store.Mail) error
}

var _ MailTx = (*store.Tx)(nil)

// WriteStats counts what Write did.
type WriteStats struct {
	Inserted       int
	ParentsCleared int // Parent references dropped because they were missing, cyclic or self-referencing
}

type writeState uint8

const (
	statePending writeState = iota
	stateInFlight
	stateDone
)

// Write inserts every record of pending exactly once so that a record's
// parent is either stored before it or cleared. Records are visited in
// pending order; for each, its chain of still-pending ancestors is collected
// and inserted oldest first. A parent that is absent from both the batch and
// the store, or that is already on the chain being built (a cycle or a
// self-reference), is cleared.
func Write(ctx context.Context, tx MailTx, pending *Batch, logger *slog.Logger) (WriteStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &writer{
		tx:      tx,
		pending: pending,
		state:   make(map[string]writeState, pending.Len()),
		stored:  make(map[string]bool),
		logger:  logger,
	}
	for _, id := range pending.IDs() {
		if err := w.writeChain(ctx, id); err != nil {
			return w.stats, err
		}
	}
	return w.stats, nil
}

type writer struct {
	tx      MailTx
	pending *Batch
	state   map[string]writeState // Missing entries are statePending
	stored  map[string]bool       // Memoized MailExists answers
	logger  *slog.Logger
	stats   WriteStats
}

func (w *writer) writeChain(ctx context.Context, id string) error {
	if w.state[id] != statePending {
		return nil
	}

	rec, _ := w.pending.Get(id)
	var chain []*Record
	for rec != nil {
		w.state[rec.ID] = stateInFlight
		chain = append(chain, rec)

		next, err := w.resolveParent(ctx, rec)
		if err != nil {
			return err
		}
		rec = next
	}

	for i := len(chain) - 1; i >= 0; i-- {
		r := chain[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.tx.InsertMail(ctx, r.Mail()); err != nil {
			return fmt.Errorf("write %s: %w", r.Key(), err)
		}
		w.state[r.ID] = stateDone
		w.stats.Inserted++
	}
	return nil
}

// resolveParent returns the parent record when it still has to be written
// first, or nil when rec can be inserted now. It clears rec.ParentID when the
// reference cannot be satisfied.
func (w *writer) resolveParent(ctx context.Context, rec *Record) (*Record, error) {
	parentID := rec.ParentID
	if parentID == "" {
		return nil, nil
	}

	if parent, ok := w.pending.Get(parentID); ok {
		switch w.state[parentID] {
		case statePending:
			return parent, nil
		case stateDone:
			return nil, nil
		default:
			w.clearParent(rec, "cycle")
			return nil, nil
		}
	}

	exists, ok := w.stored[parentID]
	if !ok {
		var err error
		exists, err = w.tx.MailExists(ctx, parentID)
		if err != nil {
			return nil, fmt.Errorf("lookup parent %q: %w", parentID, err)
		}
		w.stored[parentID] = exists
	}
	if !exists {
		w.clearParent(rec, "missing")
	}
	return nil, nil
}

func (w *writer) clearParent(rec *Record, reason string) {
	w.logger.Debug("clearing parent reference",
		"id", rec.ID, "parent", rec.ParentID, "reason", reason)
	rec.ParentID = ""
	w.stats.ParentsCleared++
}

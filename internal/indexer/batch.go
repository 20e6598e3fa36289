package indexer

import (
	"fmt"
)

// Batch is an insertion-ordered set of records keyed by identifier.
type Batch struct {
	order   []string
	records map[string]*Record
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{records: make(map[string]*Record)}
}

// Len returns the number of records.
func (b *Batch) Len() int {
	return len(b.order)
}

// Has reports whether id is claimed by a record in the batch.
func (b *Batch) Has(id string) bool {
	_, ok := b.records[id]
	return ok
}

// Get returns the record with the given identifier.
func (b *Batch) Get(id string) (*Record, bool) {
	r, ok := b.records[id]
	return r, ok
}

// Records returns the records in insertion order.
func (b *Batch) Records() []*Record {
	out := make([]*Record, len(b.order))
	for i, id := range b.order {
		out[i] = b.records[id]
	}
	return out
}

// IDs returns the identifiers in insertion order.
func (b *Batch) IDs() []string {
	return append([]string(nil), b.order...)
}

// Add appends r. If its identifier is already claimed by the batch or by
// stored, r is rekeyed to a composite identifier first. The first claimant
// of an identifier always keeps it. Reports whether r was rekeyed.
func (b *Batch) Add(r *Record, stored map[string]bool) bool {
	taken := func(id string) bool { return b.Has(id) || stored[id] }

	if !taken(r.ID) {
		b.put(r)
		return false
	}
	base := r.DeclaredID
	if base == "" {
		base = r.ID
	}
	for n := 0; ; n++ {
		id := CompositeID(r.Folder, r.Seq, base, n)
		if !taken(id) {
			r.ID = id
			b.put(r)
			return true
		}
	}
}

func (b *Batch) put(r *Record) {
	b.order = append(b.order, r.ID)
	b.records[r.ID] = r
}

// CompositeID builds the replacement identifier for a collided record:
// "<folder>-<seq>-<id>", with a "~n" suffix for n > 0.
func CompositeID(folder string, seq int64, id string, n int) string {
	base := fmt.Sprintf("%s-%d-%s", folder, seq, id)
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s~%d", base, n)
}

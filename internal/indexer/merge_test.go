package indexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func rec(id, folder string, seq int64) *Record {
	return &Record{ID: id, DeclaredID: id, Folder: folder, Seq: seq}
}

func batchOf(records ...*Record) *Batch {
	b := NewBatch()
	for _, r := range records {
		b.Add(r, nil)
	}
	return b
}

func TestBatch_Add(t *testing.T) {
	b := NewBatch()
	if b.Add(rec("x@y", "Inbox", 1), nil) {
		t.Error("first claimant was rekeyed")
	}
	if !b.Add(rec("x@y", "Inbox", 2), nil) {
		t.Error("second claimant was not rekeyed")
	}
	if !b.Add(rec("z@y", "Sent", 4), map[string]bool{"z@y": true}) {
		t.Error("stored identifier was reused")
	}

	want := []string{"x@y", "Inbox-2-x@y", "Sent-4-z@y"}
	if diff := cmp.Diff(want, b.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	r, ok := b.Get("Inbox-2-x@y")
	if !ok || r.DeclaredID != "x@y" || r.Seq != 2 {
		t.Errorf("Get rekeyed = %+v, %v", r, ok)
	}
}

func TestBatch_AddCompositeTaken(t *testing.T) {
	// A message whose declared identifier happens to equal another file's
	// composite identifier.
	b := batchOf(rec("x@y", "Inbox", 1), rec("Inbox-2-x@y", "Sent", 9))
	b.Add(rec("x@y", "Inbox", 2), nil)
	b.Add(rec("x@y", "Inbox", 2), nil)

	want := []string{"x@y", "Inbox-2-x@y", "Inbox-2-x@y~1", "Inbox-2-x@y~2"}
	if diff := cmp.Diff(want, b.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	chunk1 := batchOf(rec("a", "Inbox", 1), rec("b", "Inbox", 2), rec("a", "Inbox", 3))
	chunk2 := batchOf(rec("b", "Sent", 1), rec("c", "Sent", 2))
	chunk3 := batchOf(rec("stored", "Sent", 3), rec("a", "Sent", 4))
	stored := map[string]bool{"stored": true, "old": true}

	pending, rekeyed := Merge([]*Batch{chunk1, chunk2, nil, chunk3}, stored)

	want := []string{"a", "b", "Inbox-3-a", "Sent-1-b", "c", "Sent-3-stored", "Sent-4-a"}
	if diff := cmp.Diff(want, pending.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	// Inbox-3-a was rekeyed inside its chunk, not by Merge.
	if rekeyed != 3 {
		t.Errorf("rekeyed = %d, want 3", rekeyed)
	}
	assertPendingInvariant(t, pending, stored)
}

func TestMerge_FirstClaimantAcrossChunks(t *testing.T) {
	// The same file order split differently must yield the same identifiers.
	records := func() []*Record {
		return []*Record{
			rec("dup", "A", 1), rec("dup", "A", 2), rec("u1", "A", 3),
			rec("dup", "B", 1), rec("u1", "B", 2), rec("u2", "B", 3),
		}
	}

	var results [][]string
	for _, size := range []int{1, 2, 3, 6} {
		rs := records()
		var batches []*Batch
		for start := 0; start < len(rs); start += size {
			batches = append(batches, batchOf(rs[start:min(start+size, len(rs))]...))
		}
		pending, _ := Merge(batches, nil)
		results = append(results, pending.IDs())
	}
	for i := 1; i < len(results); i++ {
		if diff := cmp.Diff(results[0], results[i]); diff != "" {
			t.Errorf("split %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestMerge_RekeysFromDeclaredID(t *testing.T) {
	// B/2 is rekeyed inside its chunk, then collides again during the merge
	// with a file whose declared identifier is that composite.
	chunk1 := batchOf(rec("a", "A", 1), rec("B-2-a", "A", 2))
	chunk2 := batchOf(rec("a", "B", 1), rec("a", "B", 2))

	pending, _ := Merge([]*Batch{chunk1, chunk2}, nil)

	want := []string{"a", "B-2-a", "B-1-a", "B-2-a~1"}
	if diff := cmp.Diff(want, pending.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	r, ok := pending.Get("B-2-a~1")
	if !ok || r.DeclaredID != "a" {
		t.Errorf("Get(B-2-a~1) = %+v, %v", r, ok)
	}
}

func TestMerge_Empty(t *testing.T) {
	pending, rekeyed := Merge(nil, nil)
	if pending.Len() != 0 || rekeyed != 0 {
		t.Errorf("Merge(nil) = %d records, %d rekeyed", pending.Len(), rekeyed)
	}
}

func assertPendingInvariant(t *testing.T, pending *Batch, stored map[string]bool) {
	t.Helper()
	seen := map[string]bool{}
	for _, r := range pending.Records() {
		if seen[r.ID] {
			t.Errorf("duplicate pending id %q", r.ID)
		}
		if stored[r.ID] {
			t.Errorf("pending id %q is already stored", r.ID)
		}
		seen[r.ID] = true
	}
}

package indexer

// Merge folds the per-chunk batches into one pending batch. Batches are
// taken in chunk order and each batch in its insertion order, so the result
// is deterministic for a fixed scan. Identifiers already in stored are never
// reused: a record claiming one is rekeyed and the stored row is left as is.
//
// Merge returns the pending batch and the number of records it rekeyed. Keys
// of the result are pairwise distinct and disjoint from stored. Records are
// moved, not copied, so the input batches must not be used afterwards.
func Merge(batches []*Batch, stored map[string]bool) (*Batch, int) {
	pending := NewBatch()
	rekeyed := 0
	for _, batch := range batches {
		if batch == nil {
			continue
		}
		for _, r := range batch.Records() {
			if pending.Add(r, stored) {
				rekeyed++
			}
		}
	}
	return pending, rekeyed
}

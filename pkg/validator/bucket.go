package validator

import "github.com/bobboyms/write-validator/pkg/ids"

// bucketRows partitions qualified lines into per-table, per-chunk-window
// buckets, preserving source order both across chunks and within each
// chunk's row list.
func bucketRows(lines []QualifiedLine, dbID ids.DatabaseId, dbName string, chunkWindowNs int64) *WriteBatch {
	batch := newWriteBatch(dbID, dbName)
	for _, ql := range lines {
		chunkTime := floorDiv(ql.Row.Time, chunkWindowNs) * chunkWindowNs
		batch.push(ql.TableID, chunkTime, ql.Row)
	}
	return batch
}

// floorDiv computes floor(a / b) for a possibly-negative a, matching
// chunk_time = floor(time / window) * window rather than truncating toward
// zero.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

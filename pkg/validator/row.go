package validator

import (
	"strconv"

	"github.com/iancoleman/orderedmap"

	"github.com/bobboyms/write-validator/pkg/catalogop"
	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/schema"
)

// TypedValue is a single qualified value tagged with the semantic type it
// was checked against.
type TypedValue struct {
	Type  schema.ColumnType
	Str   string
	Int   int64
	UInt  uint64
	Float float64
	Bool  bool
}

func tagValue(v string) TypedValue {
	return TypedValue{Type: schema.TagType(), Str: v}
}

func timestampValue(ns int64) TypedValue {
	return TypedValue{Type: schema.TimestampType(), Int: ns}
}

// RowField pairs a column id with its qualified value.
type RowField struct {
	ColumnID ids.ColumnId
	Value    TypedValue
}

// Row is a fully qualified record: a nanosecond time plus an ordered list of
// (column, value) pairs, including the time column itself.
type Row struct {
	Time   int64
	Fields []RowField
}

// QualifiedLine is one line after Phase P qualification.
type QualifiedLine struct {
	TableID    ids.TableId
	Row        Row
	IndexCount int
	FieldCount int
}

// TableChunks groups one table's rows by chunk_time, preserving insertion
// order both across chunks and within each chunk's row list. Backed by
// orderedmap.OrderedMap, whose string-keyed Set/Keys remember insertion
// order the way a plain Go map never does.
type TableChunks struct {
	m *orderedmap.OrderedMap
}

func newTableChunks() *TableChunks {
	return &TableChunks{m: orderedmap.New()}
}

func chunkKey(chunkTime int64) string {
	return strconv.FormatInt(chunkTime, 10)
}

// PushRow appends row to the chunk it belongs to, creating the chunk on
// first use in insertion order.
func (t *TableChunks) PushRow(chunkTime int64, row Row) {
	key := chunkKey(chunkTime)
	existing, ok := t.m.Get(key)
	if !ok {
		t.m.Set(key, []Row{row})
		return
	}
	t.m.Set(key, append(existing.([]Row), row))
}

// ChunkTimes returns chunk start times in insertion order.
func (t *TableChunks) ChunkTimes() []int64 {
	keys := t.m.Keys()
	out := make([]int64, len(keys))
	for i, k := range keys {
		v, _ := strconv.ParseInt(k, 10, 64)
		out[i] = v
	}
	return out
}

// Rows returns the rows in a given chunk, in insertion order.
func (t *TableChunks) Rows(chunkTime int64) []Row {
	v, ok := t.m.Get(chunkKey(chunkTime))
	if !ok {
		return nil
	}
	return v.([]Row)
}

// WriteBatch is Phase C's output: rows bucketed per table and chunk window.
type WriteBatch struct {
	DatabaseID   ids.DatabaseId
	DatabaseName string

	m *orderedmap.OrderedMap
}

func tableKey(tableID ids.TableId) string {
	return strconv.FormatUint(uint64(tableID), 10)
}

func newWriteBatch(dbID ids.DatabaseId, dbName string) *WriteBatch {
	return &WriteBatch{
		DatabaseID:   dbID,
		DatabaseName: dbName,
		m:            orderedmap.New(),
	}
}

func (w *WriteBatch) push(tableID ids.TableId, chunkTime int64, row Row) {
	key := tableKey(tableID)
	v, ok := w.m.Get(key)
	if !ok {
		tc := newTableChunks()
		tc.PushRow(chunkTime, row)
		w.m.Set(key, tc)
		return
	}
	v.(*TableChunks).PushRow(chunkTime, row)
}

// TableIDs returns the tables with rows in this batch, in the order each
// table's first row was seen.
func (w *WriteBatch) TableIDs() []ids.TableId {
	keys := w.m.Keys()
	out := make([]ids.TableId, len(keys))
	for i, k := range keys {
		v, _ := strconv.ParseUint(k, 10, 64)
		out[i] = ids.TableId(v)
	}
	return out
}

// Chunks returns the per-chunk row grouping for a table.
func (w *WriteBatch) Chunks(tableID ids.TableId) *TableChunks {
	v, ok := w.m.Get(tableKey(tableID))
	if !ok {
		return nil
	}
	return v.(*TableChunks)
}

// LineError describes one per-line failure recorded under partial
// acceptance.
type LineError struct {
	OriginalLine string
	LineNumber   int
	Message      string
}

// ValidatedLines is the terminal summary produced by ConvertToWriteBatch.
type ValidatedLines struct {
	LineCount       int
	ValidBytesCount int
	FieldCount      int
	IndexCount      int
	Errors          []LineError
	ValidData       *WriteBatch
	CatalogUpdates  *catalogop.OrderedBatch
}

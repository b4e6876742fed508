// Package ids mints the opaque, process-wide monotonic identifiers the
// catalog uses for tables and columns.
package ids

import "sync/atomic"

// TableId identifies a table for the lifetime of the catalog. Never reused.
type TableId uint64

// ColumnId identifies a column for the lifetime of the catalog. Never reused.
type ColumnId uint64

// DatabaseId identifies a namespace/database. Minted once by the catalog's
// db_or_create and stable thereafter.
type DatabaseId uint64

// Allocator hands out monotonically increasing ids, modeled on the storage
// engine's LSN tracker: a single atomic counter, no locking.
type Allocator struct {
	current uint64
}

// NewAllocator starts an allocator whose first Next() call returns start+1.
func NewAllocator(start uint64) *Allocator {
	return &Allocator{current: start}
}

// Next mints and returns the next id.
func (a *Allocator) Next() uint64 {
	return atomic.AddUint64(&a.current, 1)
}

// Current returns the most recently minted id without allocating a new one.
func (a *Allocator) Current() uint64 {
	return atomic.LoadUint64(&a.current)
}

// Set overrides the counter, so the next id minted is val+1.
func (a *Allocator) Set(val uint64) {
	atomic.StoreUint64(&a.current, val)
}

// TableIds mints TableId values.
type TableIds struct {
	alloc Allocator
}

func NewTableIds() *TableIds { return &TableIds{} }

func (t *TableIds) Next() TableId    { return TableId(t.alloc.Next()) }
func (t *TableIds) Current() TableId { return TableId(t.alloc.Current()) }
func (t *TableIds) Set(v TableId)    { t.alloc.Set(uint64(v)) }

// ColumnIds mints ColumnId values.
type ColumnIds struct {
	alloc Allocator
}

func NewColumnIds() *ColumnIds { return &ColumnIds{} }

func (c *ColumnIds) Next() ColumnId    { return ColumnId(c.alloc.Next()) }
func (c *ColumnIds) Current() ColumnId { return ColumnId(c.alloc.Current()) }
func (c *ColumnIds) Set(v ColumnId)    { c.alloc.Set(uint64(v)) }

package rowbuffer

import (
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/write-validator/pkg/btree"
	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/types"
)

// DecodedRow is one row read back off the heap: its time column and the
// raw BSON value for every other column, keyed by column id.
type DecodedRow struct {
	Time   int64
	Fields map[ids.ColumnId]any
}

// Cursor walks a table's rows in ascending time order, optionally bounded
// by a ScanCondition. It holds a read latch on the tree's current leaf
// node, so callers must call Close (or exhaust Next) before discarding it.
type Cursor struct {
	table   *Table
	cond    *ScanCondition
	current *btree.Node
	index   int
}

func (c *Cursor) seekStart() {
	var start types.Comparable
	if c.cond != nil {
		start = c.cond.GetStartKey()
	}
	if start == nil {
		start = types.TimeKey(math.MinInt64)
	}
	c.seek(start)
}

func (c *Cursor) seek(key types.Comparable) {
	c.Close()
	leaf, idx := c.table.tree.FindLeafLowerBound(key)
	if leaf == nil {
		return
	}
	if idx >= leaf.N {
		next := leaf.Next
		leaf.RUnlock()
		if next == nil {
			return
		}
		next.RLock()
		leaf, idx = next, 0
	}
	c.current = leaf
	c.index = idx
}

// Close releases the cursor's held read latch, if any.
func (c *Cursor) Close() {
	if c.current != nil {
		c.current.RUnlock()
		c.current = nil
	}
}

// Valid reports whether the cursor is positioned on a row that also
// satisfies the scan condition's continuation rule.
func (c *Cursor) Valid() bool {
	if c.current == nil || c.index >= c.current.N {
		return false
	}
	if c.cond != nil && !c.cond.ShouldContinue(c.current.Keys[c.index]) {
		return false
	}
	return true
}

// Next advances to the next row, releasing the prior leaf's latch once
// it is no longer needed (latch coupling into the next leaf first).
func (c *Cursor) Next() bool {
	if c.current == nil {
		return false
	}
	if c.index+1 < c.current.N {
		c.index++
		return c.Valid()
	}
	next := c.current.Next
	if next != nil {
		next.RLock()
	}
	c.current.RUnlock()
	c.current = next
	c.index = 0
	for c.current != nil && c.current.N == 0 {
		n := c.current.Next
		if n != nil {
			n.RLock()
		}
		c.current.RUnlock()
		c.current = n
	}
	return c.Valid()
}

// Row decodes the row the cursor currently points at, or returns an error
// when the cursor is not Valid. The scan condition is applied only through
// Valid's continuation rule; rows that cond.Matches would reject are not
// skipped.
func (c *Cursor) Row() (DecodedRow, error) {
	if !c.Valid() {
		return DecodedRow{}, fmt.Errorf("rowbuffer: cursor not positioned on a valid row")
	}
	offset := c.current.DataPtrs[c.index]
	payload, _, err := c.table.heap.Read(offset)
	if err != nil {
		return DecodedRow{}, fmt.Errorf("rowbuffer: read row at offset %d: %w", offset, err)
	}
	var doc bson.D
	if err := bson.Unmarshal(payload, &doc); err != nil {
		return DecodedRow{}, fmt.Errorf("rowbuffer: decode row at offset %d: %w", offset, err)
	}
	t, fields, err := decodeRow(doc)
	if err != nil {
		return DecodedRow{}, err
	}
	return DecodedRow{Time: t, Fields: fields}, nil
}

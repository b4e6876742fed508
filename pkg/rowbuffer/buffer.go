package rowbuffer

import (
	"fmt"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/write-validator/pkg/btree"
	"github.com/bobboyms/write-validator/pkg/heap"
	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/query"
	"github.com/bobboyms/write-validator/pkg/types"
	"github.com/bobboyms/write-validator/pkg/validator"
)

// ScanCondition is the row buffer's range-scan predicate, reused directly
// from the query package rather than redefined here.
type ScanCondition = query.ScanCondition

// degree is the B+Tree's minimum degree. Row buffers are append-only and
// scanned in bulk, not point-queried under latency pressure, so there is
// no tuning pressure to make this configurable yet.
const degree = 64

// Table is one table's row buffer: a timestamp-ordered index over a
// segmented heap of BSON-encoded rows. Duplicate timestamps are expected
// (multiple series, sub-nanosecond arrival skew) so the underlying tree
// allows duplicate keys.
type Table struct {
	tree *btree.BPlusTree
	heap *heap.HeapManager
}

// openTable opens a table's row buffer under dir, using tableID to name its
// heap segment files. Existing segment files are reopened and appended to,
// but the index starts empty, so rows already in them are not reachable
// through a cursor.
func openTable(dir string, tableID ids.TableId) (*Table, error) {
	heapPath := filepath.Join(dir, fmt.Sprintf("table_%d", tableID))
	hm, err := heap.NewHeapManager(heapPath)
	if err != nil {
		return nil, fmt.Errorf("rowbuffer: open heap for table %d: %w", tableID, err)
	}
	return &Table{
		tree: btree.NewTree(degree),
		heap: hm,
	}, nil
}

// Append encodes row and adds it to the table's buffer. lsn is the
// monotonic sequence the caller assigns its writes, carried through into
// the heap's per-record header for later replay/compaction bookkeeping.
func (t *Table) Append(row validator.Row, lsn uint64) error {
	payload, err := bson.Marshal(encodeRow(row))
	if err != nil {
		return fmt.Errorf("rowbuffer: encode row: %w", err)
	}
	offset, err := t.heap.Write(payload, lsn, -1)
	if err != nil {
		return fmt.Errorf("rowbuffer: write row: %w", err)
	}
	if err := t.tree.Insert(types.TimeKey(row.Time), offset); err != nil {
		return fmt.Errorf("rowbuffer: index row: %w", err)
	}
	return nil
}

// NewCursor returns a cursor over this table's rows in ascending time
// order, positioned at cond's start key (or at the very first row when
// cond is nil).
func (t *Table) NewCursor(cond *ScanCondition) *Cursor {
	c := &Cursor{table: t, cond: cond}
	c.seekStart()
	return c
}

// Close releases the table's heap file handles.
func (t *Table) Close() error {
	return t.heap.Close()
}

// Manager owns one Table per TableId, all rooted under the same base
// directory.
type Manager struct {
	dir    string
	tables map[ids.TableId]*Table
}

// NewManager opens a row buffer manager rooted at dir, creating it if
// necessary.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rowbuffer: create directory: %w", err)
	}
	return &Manager{dir: dir, tables: make(map[ids.TableId]*Table)}, nil
}

// TableOrCreate returns the row buffer for tableID, opening it on first
// use.
func (m *Manager) TableOrCreate(tableID ids.TableId) (*Table, error) {
	if t, ok := m.tables[tableID]; ok {
		return t, nil
	}
	t, err := openTable(m.dir, tableID)
	if err != nil {
		return nil, err
	}
	m.tables[tableID] = t
	return t, nil
}

// Close closes every table's heap file handles.
func (m *Manager) Close() error {
	var firstErr error
	for _, t := range m.tables {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

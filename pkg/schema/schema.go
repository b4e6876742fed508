// Package schema implements the namespace schema: semantic column types, the
// table definition invariants, and the copy-on-write shadow that Phase P
// mutates privately before the catalog publishes it.
package schema

import (
	"fmt"

	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/verrors"
)

// TimeColumnName is the fixed name every table's Timestamp column carries.
const TimeColumnName = "time"

// FieldKind is the closed set of value encodings a Field(F) column can hold.
type FieldKind int

const (
	Integer FieldKind = iota
	UInteger
	Float
	String
	Boolean
)

func (f FieldKind) String() string {
	switch f {
	case Integer:
		return "Integer"
	case UInteger:
		return "UInteger"
	case Float:
		return "Float"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	default:
		return "Unknown"
	}
}

// ColumnKind is the closed set {Tag, Field(F), Timestamp}.
type ColumnKind int

const (
	KindTag ColumnKind = iota
	KindField
	KindTimestamp
)

// ColumnType names either Tag, Timestamp, or a Field of a specific FieldKind.
type ColumnType struct {
	Kind  ColumnKind
	Field FieldKind // meaningful only when Kind == KindField
}

func TagType() ColumnType       { return ColumnType{Kind: KindTag} }
func TimestampType() ColumnType { return ColumnType{Kind: KindTimestamp} }
func FieldType(f FieldKind) ColumnType {
	return ColumnType{Kind: KindField, Field: f}
}

// String renders the type the way type-mismatch error messages expect:
// "Tag", "Timestamp", or the field kind's own name.
func (c ColumnType) String() string {
	switch c.Kind {
	case KindTag:
		return "Tag"
	case KindTimestamp:
		return "Timestamp"
	case KindField:
		return c.Field.String()
	default:
		return "Unknown"
	}
}

// Equal reports whether two column types are the same semantic type,
// including the same field kind for Field columns. Field(F) is immutable
// once established: a column never transitions between kinds.
func (c ColumnType) Equal(other ColumnType) bool {
	return c.Kind == other.Kind && (c.Kind != KindField || c.Field == other.Field)
}

// Column is one entry in a table's ordered column list.
type Column struct {
	ID   ids.ColumnId
	Name string
	Type ColumnType
}

// TableDefinition owns a table's id, name, ordered columns, and series key.
type TableDefinition struct {
	ID        ids.TableId
	Name      string
	Columns   []Column
	SeriesKey []ids.ColumnId

	byName map[string]int // Name -> index into Columns
}

// NewTableDefinition validates and constructs a table definition. Column
// names must be unique, every series key entry must reference an existing
// Tag column on this table, and exactly one Timestamp column named "time"
// must be present.
func NewTableDefinition(id ids.TableId, name string, columns []Column, seriesKey []ids.ColumnId) (*TableDefinition, error) {
	if name == "" {
		return nil, &verrors.InvalidTableNameError{Name: name}
	}

	td := &TableDefinition{
		ID:        id,
		Name:      name,
		Columns:   append([]Column(nil), columns...),
		SeriesKey: append([]ids.ColumnId(nil), seriesKey...),
	}
	if err := td.reindexAndValidate(); err != nil {
		return nil, err
	}
	return td, nil
}

func (t *TableDefinition) reindexAndValidate() error {
	byName := make(map[string]int, len(t.Columns))
	byID := make(map[ids.ColumnId]Column, len(t.Columns))
	timeColumns := 0

	for i, col := range t.Columns {
		if _, exists := byName[col.Name]; exists {
			return &verrors.SchemaConstructionError{
				Message: fmt.Sprintf("duplicate column name %q on table %q", col.Name, t.Name),
			}
		}
		byName[col.Name] = i
		byID[col.ID] = col

		if col.Type.Kind == KindTimestamp {
			timeColumns++
			if col.Name != TimeColumnName {
				return &verrors.SchemaConstructionError{
					Message: fmt.Sprintf("timestamp column on table %q must be named %q, got %q", t.Name, TimeColumnName, col.Name),
				}
			}
		}
	}

	if timeColumns != 1 {
		return &verrors.SchemaConstructionError{
			Message: fmt.Sprintf("table %q must have exactly one Timestamp column, found %d", t.Name, timeColumns),
		}
	}

	for _, skID := range t.SeriesKey {
		col, ok := byID[skID]
		if !ok || col.Type.Kind != KindTag {
			return &verrors.SchemaConstructionError{
				Message: fmt.Sprintf("series_key entry %d on table %q does not reference an existing Tag column", skID, t.Name),
			}
		}
	}

	t.byName = byName
	return nil
}

// ColumnByName returns the column named name, if present.
func (t *TableDefinition) ColumnByName(name string) (Column, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[idx], true
}

// Clone returns a deep, independent copy safe to mutate.
func (t *TableDefinition) Clone() *TableDefinition {
	clone := &TableDefinition{
		ID:        t.ID,
		Name:      t.Name,
		Columns:   append([]Column(nil), t.Columns...),
		SeriesKey: append([]ids.ColumnId(nil), t.SeriesKey...),
	}
	// byName is copied so the clone's name index is independent of t's.
	byName := make(map[string]int, len(clone.byName))
	for k, v := range t.byName {
		byName[k] = v
	}
	clone.byName = byName
	return clone
}

// AddColumns appends newColumns to the end of the table's column list,
// re-validating uniqueness and type legality. newColumns must not include
// the Timestamp column (there must remain exactly one).
func (t *TableDefinition) AddColumns(newColumns []Column) error {
	t.Columns = append(t.Columns, newColumns...)
	return t.reindexAndValidate()
}

// NamespaceSchema maps TableId to table definitions for one database, with a
// secondary name index. Both indices always agree.
type NamespaceSchema struct {
	DatabaseID   ids.DatabaseId
	DatabaseName string

	tables map[ids.TableId]*TableDefinition
	byName map[string]ids.TableId
}

// NewNamespaceSchema constructs an empty namespace schema for a database.
func NewNamespaceSchema(databaseID ids.DatabaseId, databaseName string) *NamespaceSchema {
	return &NamespaceSchema{
		DatabaseID:   databaseID,
		DatabaseName: databaseName,
		tables:       make(map[ids.TableId]*TableDefinition),
		byName:       make(map[string]ids.TableId),
	}
}

// TableByID looks up a table by id.
func (n *NamespaceSchema) TableByID(id ids.TableId) (*TableDefinition, bool) {
	td, ok := n.tables[id]
	return td, ok
}

// TableByName looks up a table by name.
func (n *NamespaceSchema) TableByName(name string) (*TableDefinition, bool) {
	id, ok := n.byName[name]
	if !ok {
		return nil, false
	}
	return n.TableByID(id)
}

// InstallTable adds a brand-new table. It is an error to install a table id
// that already exists — ids are minted fresh per proposal, so a collision
// indicates a programming error upstream.
func (n *NamespaceSchema) InstallTable(td *TableDefinition) error {
	if _, exists := n.tables[td.ID]; exists {
		return &verrors.DuplicateTableIdError{TableID: uint64(td.ID)}
	}
	n.tables[td.ID] = td
	n.byName[td.Name] = td.ID
	return nil
}

// ReplaceTable swaps in a new version of an existing table definition
// (used after AddColumns produces a new, larger definition).
func (n *NamespaceSchema) ReplaceTable(td *TableDefinition) {
	n.tables[td.ID] = td
	n.byName[td.Name] = td.ID
}

// Tables returns every table definition currently installed, in no
// particular order. Used by snapshot encoding and diagnostics.
func (n *NamespaceSchema) Tables() []*TableDefinition {
	out := make([]*TableDefinition, 0, len(n.tables))
	for _, td := range n.tables {
		out = append(out, td)
	}
	return out
}

// Clone returns a namespace schema whose maps are independent of the
// receiver's, though table definitions are shared until individually
// replaced. This is the "owned overlay" half of the copy-on-write shadow.
func (n *NamespaceSchema) Clone() *NamespaceSchema {
	clone := &NamespaceSchema{
		DatabaseID:   n.DatabaseID,
		DatabaseName: n.DatabaseName,
		tables:       make(map[ids.TableId]*TableDefinition, len(n.tables)),
		byName:       make(map[string]ids.TableId, len(n.byName)),
	}
	for k, v := range n.tables {
		clone.tables[k] = v
	}
	for k, v := range n.byName {
		clone.byName[k] = v
	}
	return clone
}

// Shadow is the copy-on-write view Phase P operates against: a read-through
// reference to the immutable base snapshot until the first schema-altering
// line promotes an owned, mutable overlay.
type Shadow struct {
	base    *NamespaceSchema
	overlay *NamespaceSchema
}

// NewShadow wraps an immutable base snapshot.
func NewShadow(base *NamespaceSchema) *Shadow {
	return &Shadow{base: base}
}

// active returns the overlay if one has been promoted, else the base.
func (s *Shadow) active() *NamespaceSchema {
	if s.overlay != nil {
		return s.overlay
	}
	return s.base
}

// TableByID reads through to whichever schema is currently active.
func (s *Shadow) TableByID(id ids.TableId) (*TableDefinition, bool) {
	return s.active().TableByID(id)
}

// TableByName reads through to whichever schema is currently active.
func (s *Shadow) TableByName(name string) (*TableDefinition, bool) {
	return s.active().TableByName(name)
}

// Dirty reports whether any mutation has promoted an overlay.
func (s *Shadow) Dirty() bool {
	return s.overlay != nil
}

// overlayForWrite clones the base on first mutation and returns the
// now-owned overlay for subsequent writes within the same batch.
func (s *Shadow) overlayForWrite() *NamespaceSchema {
	if s.overlay == nil {
		s.overlay = s.base.Clone()
	}
	return s.overlay
}

// InstallTable stages a brand-new table into the shadow, promoting the
// overlay if this is the batch's first mutation.
func (s *Shadow) InstallTable(td *TableDefinition) error {
	return s.overlayForWrite().InstallTable(td)
}

// ReplaceTable stages an updated table definition into the shadow.
func (s *Shadow) ReplaceTable(td *TableDefinition) {
	s.overlayForWrite().ReplaceTable(td)
}

// Snapshot returns the schema the shadow currently represents, including
// any mutations staged so far.
func (s *Shadow) Snapshot() *NamespaceSchema {
	return s.active()
}

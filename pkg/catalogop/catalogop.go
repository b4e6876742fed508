// Package catalogop defines the catalog operation sum type and the ordered
// batches the validator stages during Phase P and publishes during Phase C.
package catalogop

import (
	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/schema"
)

// OpKind distinguishes the two catalog operation shapes.
type OpKind int

const (
	OpCreateTable OpKind = iota
	OpAddFields
)

// FieldDefinition is the wire shape of a single column addition, independent
// of where in a TableDefinition's column list it eventually lands.
type FieldDefinition struct {
	ColumnID ids.ColumnId
	Name     string
	Type     schema.ColumnType
}

// Op is the catalog operation sum type: either CreateTable or AddFields.
// Exactly one of the two payloads is meaningful, selected by Kind.
type Op struct {
	Kind OpKind

	DatabaseID   ids.DatabaseId
	DatabaseName string
	TableID      ids.TableId
	TableName    string

	// FieldDefinitions carries only the newly introduced columns: all of
	// them for CreateTable, the delta for AddFields.
	FieldDefinitions []FieldDefinition

	// SeriesKey is populated only for CreateTable.
	SeriesKey []ids.ColumnId
}

// CreateTable builds a CreateTable op.
func CreateTable(dbID ids.DatabaseId, dbName string, tableID ids.TableId, tableName string, fields []FieldDefinition, seriesKey []ids.ColumnId) Op {
	return Op{
		Kind:             OpCreateTable,
		DatabaseID:       dbID,
		DatabaseName:     dbName,
		TableID:          tableID,
		TableName:        tableName,
		FieldDefinitions: fields,
		SeriesKey:        seriesKey,
	}
}

// AddFields builds an AddFields op.
func AddFields(dbID ids.DatabaseId, dbName string, tableID ids.TableId, tableName string, fields []FieldDefinition) Op {
	return Op{
		Kind:             OpAddFields,
		DatabaseID:       dbID,
		DatabaseName:     dbName,
		TableID:          tableID,
		TableName:        tableName,
		FieldDefinitions: fields,
	}
}

// Batch is an ordered, atomically-applied list of schema operations staged
// by one validator call.
type Batch struct {
	DatabaseID   ids.DatabaseId
	DatabaseName string
	WallTimeNs   int64
	Ops          []Op
}

// OrderedBatch is the catalog's acknowledgment of a published Batch: the
// same ops, carrying the sequence number the catalog assigned for replay.
type OrderedBatch struct {
	Sequence uint64
	Batch    Batch
}

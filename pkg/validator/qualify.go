package validator

import (
	"fmt"

	"github.com/bobboyms/write-validator/pkg/catalogop"
	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/lineprotocol"
	"github.com/bobboyms/write-validator/pkg/precision"
	"github.com/bobboyms/write-validator/pkg/schema"
	"github.com/bobboyms/write-validator/pkg/verrors"
)

// Catalog is the external seam the qualifier and the state machine depend
// on: idempotent namespace lookup, atomic batch publication, and the two
// eager id allocators. *catalog.Catalog satisfies this.
type Catalog interface {
	DbOrCreate(name string) (*schema.NamespaceSchema, error)
	ApplyCatalogBatch(batch catalogop.Batch) (*catalogop.OrderedBatch, error)
	NextTableID() ids.TableId
	NextColumnID() ids.ColumnId
}

// inferFieldKind maps a decoded value's syntactic form to its Field(F) kind.
func inferFieldKind(v lineprotocol.Value) (schema.FieldKind, error) {
	switch v.Kind {
	case lineprotocol.KindInt:
		return schema.Integer, nil
	case lineprotocol.KindUint:
		return schema.UInteger, nil
	case lineprotocol.KindFloat:
		return schema.Float, nil
	case lineprotocol.KindString:
		return schema.String, nil
	case lineprotocol.KindBool:
		return schema.Boolean, nil
	default:
		return 0, fmt.Errorf("unrecognized value kind %d", v.Kind)
	}
}

func fieldValue(v lineprotocol.Value, t schema.ColumnType) TypedValue {
	tv := TypedValue{Type: t}
	switch v.Kind {
	case lineprotocol.KindInt:
		tv.Int = v.Int
	case lineprotocol.KindUint:
		tv.UInt = v.Uint
	case lineprotocol.KindFloat:
		tv.Float = v.Float
	case lineprotocol.KindString:
		tv.Str = v.Str
	case lineprotocol.KindBool:
		tv.Bool = v.Bool
	}
	return tv
}

func resolveTimestamp(ln *lineprotocol.DecodedLine, prec precision.Precision, ingestTimeNs int64) int64 {
	if ln.RawTimestamp == nil {
		return ingestTimeNs
	}
	return precision.ApplyToTimestamp(prec, *ln.RawTimestamp)
}

// qualifyLine runs the per-line algorithm against the shadow schema,
// returning the qualified row and, if the line staged any new columns, the
// catalog op capturing exactly those additions. On any error the shadow is
// left untouched: staging only commits once the whole line has succeeded.
func qualifyLine(
	shadow *schema.Shadow,
	cat Catalog,
	dbID ids.DatabaseId,
	dbName string,
	ln *lineprotocol.DecodedLine,
	lineNumber int,
	ingestTimeNs int64,
	prec precision.Precision,
) (*QualifiedLine, *catalogop.Op, error) {
	if existing, ok := shadow.TableByName(ln.Measurement); ok {
		return qualifyExistingTable(shadow, cat, dbID, dbName, existing, ln, lineNumber, ingestTimeNs, prec)
	}
	return qualifyNewTable(shadow, cat, dbID, dbName, ln, lineNumber, ingestTimeNs, prec)
}

func qualifyExistingTable(
	shadow *schema.Shadow,
	cat Catalog,
	dbID ids.DatabaseId,
	dbName string,
	existing *schema.TableDefinition,
	ln *lineprotocol.DecodedLine,
	lineNumber int,
	ingestTimeNs int64,
	prec precision.Precision,
) (*QualifiedLine, *catalogop.Op, error) {
	var staged []schema.Column
	var stagedDefs []catalogop.FieldDefinition
	var fields []RowField
	indexCount, fieldCount := 0, 0

	for _, tag := range ln.Tags {
		if col, ok := existing.ColumnByName(tag.Key); ok {
			if col.Type.Kind != schema.KindTag {
				return nil, nil, &verrors.TypeMismatchError{
					Line: lineNumber, Field: tag.Key,
					Expected: col.Type.String(), Incoming: "Tag",
				}
			}
			fields = append(fields, RowField{ColumnID: col.ID, Value: tagValue(tag.Value)})
		} else {
			id := cat.NextColumnID()
			col := schema.Column{ID: id, Name: tag.Key, Type: schema.TagType()}
			staged = append(staged, col)
			stagedDefs = append(stagedDefs, catalogop.FieldDefinition{ColumnID: id, Name: tag.Key, Type: schema.TagType()})
			fields = append(fields, RowField{ColumnID: id, Value: tagValue(tag.Value)})
		}
		indexCount++
	}

	for _, f := range ln.Fields {
		kind, err := inferFieldKind(f.Value)
		if err != nil {
			return nil, nil, &verrors.TokenizationError{Line: lineNumber, Message: err.Error()}
		}
		incoming := schema.FieldType(kind)

		if col, ok := existing.ColumnByName(f.Key); ok {
			if !col.Type.Equal(incoming) {
				return nil, nil, &verrors.TypeMismatchError{
					Line: lineNumber, Field: f.Key,
					Expected: col.Type.String(), Incoming: incoming.String(),
				}
			}
			fields = append(fields, RowField{ColumnID: col.ID, Value: fieldValue(f.Value, col.Type)})
		} else {
			id := cat.NextColumnID()
			col := schema.Column{ID: id, Name: f.Key, Type: incoming}
			staged = append(staged, col)
			stagedDefs = append(stagedDefs, catalogop.FieldDefinition{ColumnID: id, Name: f.Key, Type: incoming})
			fields = append(fields, RowField{ColumnID: id, Value: fieldValue(f.Value, incoming)})
		}
		fieldCount++
	}

	var timeID ids.ColumnId
	if timeCol, ok := existing.ColumnByName(schema.TimeColumnName); ok {
		timeID = timeCol.ID
	} else {
		timeID = cat.NextColumnID()
		col := schema.Column{ID: timeID, Name: schema.TimeColumnName, Type: schema.TimestampType()}
		staged = append(staged, col)
		stagedDefs = append(stagedDefs, catalogop.FieldDefinition{ColumnID: timeID, Name: schema.TimeColumnName, Type: schema.TimestampType()})
	}
	tsNs := resolveTimestamp(ln, prec, ingestTimeNs)
	fields = append(fields, RowField{ColumnID: timeID, Value: timestampValue(tsNs)})

	if len(staged) > 0 {
		clone := existing.Clone()
		if err := clone.AddColumns(staged); err != nil {
			return nil, nil, err
		}
		shadow.ReplaceTable(clone)
	}

	var op *catalogop.Op
	if len(stagedDefs) > 0 {
		o := catalogop.AddFields(dbID, dbName, existing.ID, existing.Name, stagedDefs)
		op = &o
	}

	qualified := &QualifiedLine{
		TableID:    existing.ID,
		Row:        Row{Time: tsNs, Fields: fields},
		IndexCount: indexCount,
		FieldCount: fieldCount,
	}
	return qualified, op, nil
}

func qualifyNewTable(
	shadow *schema.Shadow,
	cat Catalog,
	dbID ids.DatabaseId,
	dbName string,
	ln *lineprotocol.DecodedLine,
	lineNumber int,
	ingestTimeNs int64,
	prec precision.Precision,
) (*QualifiedLine, *catalogop.Op, error) {
	tableID := cat.NextTableID()

	var columns []schema.Column
	var defs []catalogop.FieldDefinition
	var seriesKey []ids.ColumnId
	var fields []RowField
	indexCount, fieldCount := 0, 0

	for _, tag := range ln.Tags {
		id := cat.NextColumnID()
		columns = append(columns, schema.Column{ID: id, Name: tag.Key, Type: schema.TagType()})
		defs = append(defs, catalogop.FieldDefinition{ColumnID: id, Name: tag.Key, Type: schema.TagType()})
		seriesKey = append(seriesKey, id)
		fields = append(fields, RowField{ColumnID: id, Value: tagValue(tag.Value)})
		indexCount++
	}

	for _, f := range ln.Fields {
		kind, err := inferFieldKind(f.Value)
		if err != nil {
			return nil, nil, &verrors.TokenizationError{Line: lineNumber, Message: err.Error()}
		}
		t := schema.FieldType(kind)
		id := cat.NextColumnID()
		columns = append(columns, schema.Column{ID: id, Name: f.Key, Type: t})
		defs = append(defs, catalogop.FieldDefinition{ColumnID: id, Name: f.Key, Type: t})
		fields = append(fields, RowField{ColumnID: id, Value: fieldValue(f.Value, t)})
		fieldCount++
	}

	timeID := cat.NextColumnID()
	columns = append(columns, schema.Column{ID: timeID, Name: schema.TimeColumnName, Type: schema.TimestampType()})
	defs = append(defs, catalogop.FieldDefinition{ColumnID: timeID, Name: schema.TimeColumnName, Type: schema.TimestampType()})
	tsNs := resolveTimestamp(ln, prec, ingestTimeNs)
	fields = append(fields, RowField{ColumnID: timeID, Value: timestampValue(tsNs)})

	td, err := schema.NewTableDefinition(tableID, ln.Measurement, columns, seriesKey)
	if err != nil {
		return nil, nil, err
	}
	if err := shadow.InstallTable(td); err != nil {
		return nil, nil, err
	}

	op := catalogop.CreateTable(dbID, dbName, tableID, ln.Measurement, defs, seriesKey)
	qualified := &QualifiedLine{
		TableID:    tableID,
		Row:        Row{Time: tsNs, Fields: fields},
		IndexCount: indexCount,
		FieldCount: fieldCount,
	}
	return qualified, &op, nil
}

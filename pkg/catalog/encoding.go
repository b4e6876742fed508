package catalog

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/write-validator/pkg/catalogop"
	"github.com/bobboyms/write-validator/pkg/schema"
)

// toBSONBatch mirrors the storage engine's MarshalBson convention: a bson.D
// built by hand, field by field, rather than struct-tag reflection.
func toBSONBatch(b catalogop.Batch) bson.D {
	ops := bson.A{}
	for _, op := range b.Ops {
		ops = append(ops, toBSONOp(op))
	}
	return bson.D{
		{Key: "database_id", Value: uint64(b.DatabaseID)},
		{Key: "database_name", Value: b.DatabaseName},
		{Key: "wall_time_ns", Value: b.WallTimeNs},
		{Key: "ops", Value: ops},
	}
}

func toBSONOp(op catalogop.Op) bson.D {
	fields := bson.A{}
	for _, fd := range op.FieldDefinitions {
		fields = append(fields, bson.D{
			{Key: "column_id", Value: uint64(fd.ColumnID)},
			{Key: "name", Value: fd.Name},
			{Key: "type_kind", Value: int(fd.Type.Kind)},
			{Key: "type_field", Value: int(fd.Type.Field)},
		})
	}
	seriesKey := bson.A{}
	for _, sk := range op.SeriesKey {
		seriesKey = append(seriesKey, uint64(sk))
	}
	return bson.D{
		{Key: "kind", Value: int(op.Kind)},
		{Key: "table_id", Value: uint64(op.TableID)},
		{Key: "table_name", Value: op.TableName},
		{Key: "fields", Value: fields},
		{Key: "series_key", Value: seriesKey},
	}
}

// toBSONSchema encodes a full namespace schema for checkpointing.
func toBSONSchema(ns *schema.NamespaceSchema) bson.D {
	tables := bson.A{}
	for _, td := range ns.Tables() {
		cols := bson.A{}
		for _, col := range td.Columns {
			cols = append(cols, bson.D{
				{Key: "column_id", Value: uint64(col.ID)},
				{Key: "name", Value: col.Name},
				{Key: "type_kind", Value: int(col.Type.Kind)},
				{Key: "type_field", Value: int(col.Type.Field)},
			})
		}
		seriesKey := bson.A{}
		for _, sk := range td.SeriesKey {
			seriesKey = append(seriesKey, uint64(sk))
		}
		tables = append(tables, bson.D{
			{Key: "table_id", Value: uint64(td.ID)},
			{Key: "table_name", Value: td.Name},
			{Key: "columns", Value: cols},
			{Key: "series_key", Value: seriesKey},
		})
	}

	return bson.D{
		{Key: "database_id", Value: uint64(ns.DatabaseID)},
		{Key: "database_name", Value: ns.DatabaseName},
		{Key: "tables", Value: tables},
	}
}

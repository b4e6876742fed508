// Package rowbuffer is the append-then-scan row store a WAL replay or
// compaction stage would read from: one B+Tree keyed by timestamp per
// table, with leaves pointing into a segmented heap holding the row's
// encoded columns. It is deliberately narrower than a full storage
// engine — no MVCC, no transactions, no vacuum.
package rowbuffer

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/bobboyms/write-validator/pkg/ids"
	"github.com/bobboyms/write-validator/pkg/schema"
	"github.com/bobboyms/write-validator/pkg/validator"
)

// encodeRow turns a qualified row into a BSON document, one field per
// column plus the time column itself, keyed by the column id rather than
// its name since names can be renamed independently of storage.
func encodeRow(row validator.Row) bson.D {
	doc := make(bson.D, 0, len(row.Fields)+1)
	doc = append(doc, bson.E{Key: "t", Value: row.Time})
	for _, f := range row.Fields {
		doc = append(doc, bson.E{Key: columnKey(f.ColumnID), Value: encodeValue(f.Value)})
	}
	return doc
}

func columnKey(id ids.ColumnId) string {
	return fmt.Sprintf("c%d", id)
}

func encodeValue(v validator.TypedValue) any {
	switch v.Type.Kind {
	case schema.KindTag, schema.KindTimestamp:
		if v.Type.Kind == schema.KindTimestamp {
			return v.Int
		}
		return v.Str
	case schema.KindField:
		switch v.Type.Field {
		case schema.Integer:
			return v.Int
		case schema.UInteger:
			return int64(v.UInt)
		case schema.Float:
			return v.Float
		case schema.Boolean:
			return v.Bool
		default:
			return v.Str
		}
	default:
		return v.Str
	}
}

// decodeRow reads the fields back out of a BSON document, returning the
// time column and the remaining (column, raw value) pairs. Full semantic
// re-typing is the scan caller's job: it already knows each column's
// ColumnType from the catalog snapshot it is scanning against.
func decodeRow(doc bson.D) (timeNs int64, fields map[ids.ColumnId]any, err error) {
	fields = make(map[ids.ColumnId]any, len(doc))
	for _, e := range doc {
		if e.Key == "t" {
			t, ok := asInt64(e.Value)
			if !ok {
				return 0, nil, fmt.Errorf("rowbuffer: decode: time column has non-integer value %v", e.Value)
			}
			timeNs = t
			continue
		}
		var colID ids.ColumnId
		if _, scanErr := fmt.Sscanf(e.Key, "c%d", &colID); scanErr != nil {
			return 0, nil, fmt.Errorf("rowbuffer: decode: malformed column key %q: %w", e.Key, scanErr)
		}
		fields[colID] = e.Value
	}
	return timeNs, fields, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// Package lineprotocol wraps the external line-protocol tokenizer
// (github.com/influxdata/line-protocol/v2/lineprotocol) behind the narrow
// contract the validator needs: one decoded line at a time, tags and fields
// in source order, and an unconverted raw timestamp when present.
package lineprotocol

import (
	"time"

	influx "github.com/influxdata/line-protocol/v2/lineprotocol"
)

// ValueKind mirrors the line-protocol value kinds the validator's type
// inference switches on.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindUint
	KindFloat
	KindString
	KindBool
)

// Value holds a decoded field value tagged with its syntactic kind.
type Value struct {
	Kind   ValueKind
	Int    int64
	Uint   uint64
	Float  float64
	Str    string
	Bool   bool
}

// Tag is a decoded tag key/value pair.
type Tag struct {
	Key   string
	Value string
}

// Field is a decoded field key/value pair.
type Field struct {
	Key   string
	Value Value
}

// DecodedLine is one fully decoded line-protocol record.
type DecodedLine struct {
	Measurement string
	Tags        []Tag
	Fields      []Field
	// RawTimestamp is the line's timestamp exactly as written, with no
	// precision applied, or nil if the line omitted one.
	RawTimestamp *int64
}

// Decoder decodes a `\n`-separated line-protocol payload one line at a
// time.
type Decoder struct {
	dec *influx.Decoder
}

// NewDecoder wraps raw line-protocol text for sequential decoding.
func NewDecoder(text string) *Decoder {
	return &Decoder{dec: influx.NewDecoderWithBytes([]byte(text))}
}

// sentinelBase is a timestamp no real line will ever carry; used to detect
// "no timestamp in this line" without an extra API surface.
var sentinelBase = time.Unix(0, 0).In(time.UTC)

// Next decodes the next line. It returns (nil, nil) once the payload is
// exhausted, or a non-nil error if the underlying tokenizer rejects the
// line's syntax.
func (d *Decoder) Next() (*DecodedLine, error) {
	if !d.dec.Next() {
		if err := d.dec.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	measurement, err := d.dec.Measurement()
	if err != nil {
		return nil, err
	}
	line := &DecodedLine{Measurement: string(measurement)}

	for {
		key, val, err := d.dec.NextTag()
		if err != nil {
			return nil, err
		}
		if key == nil {
			break
		}
		line.Tags = append(line.Tags, Tag{Key: string(key), Value: string(val)})
	}

	for {
		key, val, err := d.dec.NextField()
		if err != nil {
			return nil, err
		}
		if key == nil {
			break
		}
		line.Fields = append(line.Fields, Field{Key: string(key), Value: convertValue(val)})
	}

	// Nanosecond precision applies a 1x multiplier, so round-tripping through
	// Time() with it recovers the exact raw integer the line carried.
	t, err := d.dec.Time(influx.Nanosecond, sentinelBase)
	if err != nil {
		return nil, err
	}
	if !t.Equal(sentinelBase) {
		raw := t.UnixNano()
		line.RawTimestamp = &raw
	}

	return line, nil
}

func convertValue(v influx.Value) Value {
	switch v.Kind() {
	case influx.Int:
		return Value{Kind: KindInt, Int: v.IntV()}
	case influx.Uint:
		return Value{Kind: KindUint, Uint: v.UintV()}
	case influx.Float:
		return Value{Kind: KindFloat, Float: v.FloatV()}
	case influx.String:
		return Value{Kind: KindString, Str: v.StringV()}
	case influx.Bool:
		return Value{Kind: KindBool, Bool: v.BoolV()}
	default:
		return Value{Kind: KindString, Str: v.String()}
	}
}

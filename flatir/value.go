package flatir

import (
	"fmt"
	"math"

	"github.com/hugr-lab/duckbridge/filter"
)

// Kind tags the payload of a Value. The numbering is part of the wire form.
type Kind uint8

const (
	KindNull    Kind = 0
	KindBool    Kind = 1
	KindInt64   Kind = 2
	KindFloat64 Kind = 3
	KindUtf8    Kind = 4
	KindBytes   Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindUtf8:
		return "utf8"
	case KindBytes:
		return "bytes"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a flat, language-neutral constant. Logical carries the host type
// name so a reader can restore the exact logical type: decimals travel as
// Utf8 text, temporal values as Int64 epoch offsets.
type Value struct {
	Kind    Kind    `msgpack:"k"`
	Logical string  `msgpack:"t,omitempty"`
	Bool    bool    `msgpack:"b,omitempty"`
	Int     int64   `msgpack:"i,omitempty"`
	Float   float64 `msgpack:"f,omitempty"`
	Bytes   []byte  `msgpack:"s,omitempty"`
}

// Str returns the Utf8 payload as a string.
func (v Value) Str() string { return string(v.Bytes) }

// FromHost converts a host value into its flat form. Byte payloads are
// interned in a. Values outside the carriers (unsigned above MaxInt64,
// 128-bit integers that do not fit, intervals, nested values) return an
// error scoped to this value.
func FromHost(v filter.Value, a *Arena) (Value, error) {
	out := Value{Logical: v.Type.String()}
	if v.IsNull {
		out.Kind = KindNull
		return out, nil
	}

	id := v.Type.ID
	switch {
	case id == filter.TypeIDBoolean:
		b, ok := v.Data.(bool)
		if !ok {
			break
		}
		out.Kind, out.Bool = KindBool, b
		return out, nil

	case id.IsInteger(), id == filter.TypeIDDate, id == filter.TypeIDTime, id == filter.TypeIDTimeTZ, id.IsTimestamp():
		n, ok := v.Int64()
		if !ok {
			return Value{}, &filter.UnsupportedError{Kind: "value", Reason: fmt.Sprintf("%s %s exceeds the 64-bit signed carrier", id, v)}
		}
		out.Kind, out.Int = KindInt64, n
		return out, nil

	case id.IsFloat():
		f, ok := v.Float64()
		if !ok {
			break
		}
		out.Kind, out.Float = KindFloat64, f
		return out, nil

	case id == filter.TypeIDDecimal:
		text, ok := v.Text()
		if !ok {
			break
		}
		out.Kind, out.Bytes = KindUtf8, a.InternString(text)
		return out, nil

	case id == filter.TypeIDVarchar, id == filter.TypeIDChar, id == filter.TypeIDUUID:
		s, ok := v.Data.(string)
		if !ok {
			break
		}
		out.Kind, out.Bytes = KindUtf8, a.InternString(s)
		return out, nil

	case id == filter.TypeIDBlob:
		b, ok := v.Bytes()
		if !ok {
			break
		}
		out.Kind, out.Bytes = KindBytes, a.Intern(b)
		return out, nil
	}
	return Value{}, &filter.UnsupportedError{Kind: "value", Reason: fmt.Sprintf("type %s with payload %T", v.Type, v.Data)}
}

// ToHost restores the host value. When Logical is empty the type is chosen
// from the kind.
func ToHost(v Value) (filter.Value, error) {
	lt := defaultType(v.Kind)
	if v.Logical != "" {
		lt = filter.ParseTypeName(v.Logical)
	}

	switch v.Kind {
	case KindNull:
		return filter.NullValue(lt), nil
	case KindBool:
		return filter.Value{Type: lt, Data: v.Bool}, nil
	case KindInt64:
		if lt.ID.IsUnsigned() {
			if v.Int < 0 {
				return filter.Value{}, fmt.Errorf("flatir: negative value %d for %s", v.Int, lt)
			}
			return filter.Value{Type: lt, Data: uint64(v.Int)}, nil
		}
		if lt.ID == filter.TypeIDHugeInt {
			upper := int64(0)
			if v.Int < 0 {
				upper = -1
			}
			return filter.Value{Type: lt, Data: filter.HugeInt{Upper: upper, Lower: uint64(v.Int)}}, nil
		}
		if lt.ID == filter.TypeIDUHugeInt {
			return filter.Value{Type: lt, Data: filter.UHugeInt{Lower: uint64(v.Int)}}, nil
		}
		return filter.Value{Type: lt, Data: v.Int}, nil
	case KindFloat64:
		f := v.Float
		if lt.ID == filter.TypeIDFloat && !math.IsNaN(f) {
			f = float64(float32(f))
		}
		return filter.Value{Type: lt, Data: f}, nil
	case KindUtf8:
		return filter.Value{Type: lt, Data: string(v.Bytes)}, nil
	case KindBytes:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return filter.Value{Type: lt, Data: b}, nil
	}
	return filter.Value{}, fmt.Errorf("flatir: unknown value kind %d", v.Kind)
}

func defaultType(k Kind) filter.LogicalType {
	switch k {
	case KindBool:
		return filter.LogicalType{ID: filter.TypeIDBoolean}
	case KindInt64:
		return filter.LogicalType{ID: filter.TypeIDBigInt}
	case KindFloat64:
		return filter.LogicalType{ID: filter.TypeIDDouble}
	case KindUtf8:
		return filter.LogicalType{ID: filter.TypeIDVarchar}
	case KindBytes:
		return filter.LogicalType{ID: filter.TypeIDBlob}
	}
	return filter.LogicalType{ID: filter.TypeIDSQLNull}
}

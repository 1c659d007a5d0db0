package convert

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/duckbridge/filter"
)

// ValueAt returns slot i of arr as a host value. Temporal values keep the
// array's epoch unit, which LogicalTypeOf encodes in the returned type.
func ValueAt(arr arrow.Array, i int) (filter.Value, error) {
	lt, err := LogicalTypeOf(arr.DataType())
	if err != nil {
		return filter.Value{}, err
	}
	if arr.IsNull(i) {
		return filter.NullValue(lt), nil
	}

	v := filter.Value{Type: lt}
	switch a := arr.(type) {
	case *array.Boolean:
		v.Data = a.Value(i)
	case *array.Int8:
		v.Data = int64(a.Value(i))
	case *array.Int16:
		v.Data = int64(a.Value(i))
	case *array.Int32:
		v.Data = int64(a.Value(i))
	case *array.Int64:
		v.Data = a.Value(i)
	case *array.Uint8:
		v.Data = uint64(a.Value(i))
	case *array.Uint16:
		v.Data = uint64(a.Value(i))
	case *array.Uint32:
		v.Data = uint64(a.Value(i))
	case *array.Uint64:
		v.Data = a.Value(i)
	case *array.Float16:
		v.Data = float64(a.Value(i).Float32())
	case *array.Float32:
		v.Data = float64(a.Value(i))
	case *array.Float64:
		v.Data = a.Value(i)
	case *array.String:
		v.Data = a.Value(i)
	case *array.LargeString:
		v.Data = a.Value(i)
	case *array.StringView:
		v.Data = a.Value(i)
	case *array.Binary:
		v.Data = cloneBytes(a.Value(i))
	case *array.LargeBinary:
		v.Data = cloneBytes(a.Value(i))
	case *array.FixedSizeBinary:
		v.Data = cloneBytes(a.Value(i))
	case *array.Date32:
		v.Data = int64(a.Value(i))
	case *array.Date64:
		v.Data = int64(a.Value(i)) / 86400000
	case *array.Time32:
		u := a.DataType().(*arrow.Time32Type).Unit
		v.Data = int64(a.Value(i)) * (unitsPerSecond(arrow.Microsecond) / unitsPerSecond(u))
	case *array.Time64:
		u := a.DataType().(*arrow.Time64Type).Unit
		n := int64(a.Value(i))
		if u == arrow.Nanosecond {
			n /= 1000
		}
		v.Data = n
	case *array.Timestamp:
		ts := a.DataType().(*arrow.TimestampType)
		n := int64(a.Value(i))
		if ts.TimeZone != "" {
			// TIMESTAMP_TZ is microsecond based on the host side.
			if us, ok := rescaleLossy(n, ts.Unit, arrow.Microsecond); ok {
				n = us
			}
		}
		v.Data = n
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		v.Data = a.Value(i).ToString(scale)
	case *array.Decimal256:
		scale := a.DataType().(*arrow.Decimal256Type).Scale
		v.Data = a.Value(i).ToString(scale)
	default:
		return filter.Value{}, &ConversionError{Type: arr.DataType(), Err: ErrUnsupportedType}
	}
	return v, nil
}

// rescaleLossy converts between units, truncating toward negative infinity
// when coarsening.
func rescaleLossy(n int64, from, to arrow.TimeUnit) (int64, bool) {
	f, t := unitsPerSecond(from), unitsPerSecond(to)
	if t >= f {
		return mulChecked(n, t/f)
	}
	d := f / t
	q := n / d
	if n%d != 0 && n < 0 {
		q--
	}
	return q, true
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

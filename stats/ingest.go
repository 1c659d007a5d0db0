package stats

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hugr-lab/duckbridge/filter"
)

// Summary type tags.
const (
	TagNone   byte = 'n'
	TagInt    byte = 'i'
	TagFloat  byte = 'f'
	TagString byte = 's'
)

// ErrSummary reports a summary whose fields cannot be read as the declared
// column type.
var ErrSummary = errors.New("stats: summary does not fit column type")

// Summary is a precomputed per-column statistics record supplied by the
// caller. TypeTag selects which min/max pair is meaningful: TagInt uses
// MinInt/MaxInt, TagFloat MinFloat/MaxFloat, TagString MinString/MaxString.
// TagNone marks a column without statistics.
//
// Date and timestamp columns always read MinInt/MaxInt as epoch days or
// ticks.
type Summary struct {
	Column          int     `msgpack:"col"`
	TypeTag         byte    `msgpack:"tag"`
	NullCount       int64   `msgpack:"nulls"`
	RowCount        int64   `msgpack:"rows"`
	MinInt          int64   `msgpack:"min_i,omitempty"`
	MaxInt          int64   `msgpack:"max_i,omitempty"`
	MinFloat        float64 `msgpack:"min_f,omitempty"`
	MaxFloat        float64 `msgpack:"max_f,omitempty"`
	MinString       string  `msgpack:"min_s,omitempty"`
	MaxString       string  `msgpack:"max_s,omitempty"`
	MaxStringLength uint64  `msgpack:"max_len,omitempty"`
	DistinctCount   *uint64 `msgpack:"distinct,omitempty"`
}

// Ingest translates s into statistics for a column of type lt without
// touching any data. A TagNone summary yields nil.
func Ingest(s Summary, lt filter.LogicalType) (*Column, error) {
	if s.TypeTag == TagNone || s.TypeTag == 0 {
		return nil, nil
	}

	c := &Column{
		Type:          lt,
		RowCount:      s.RowCount,
		NullCount:     s.NullCount,
		DistinctCount: s.DistinctCount,
	}
	if c.Validity() == NoValid {
		return c, nil
	}

	var minV, maxV filter.Value
	var err error
	switch {
	case lt.ID == filter.TypeIDVarchar || lt.ID == filter.TypeIDChar:
		minV = filter.Value{Type: lt, Data: s.MinString}
		maxV = filter.Value{Type: lt, Data: s.MaxString}
		n := s.MaxStringLength
		if n == 0 {
			n = uint64(max(len(s.MinString), len(s.MaxString)))
		}
		c.MaxStringLength = &n
		c.ContainsUnicode = !isASCII(s.MinString) || !isASCII(s.MaxString)

	case lt.ID == filter.TypeIDDate:
		if s.MinInt < math.MinInt32 || s.MaxInt > math.MaxInt32 {
			return nil, fmt.Errorf("%w: date %d..%d", ErrSummary, s.MinInt, s.MaxInt)
		}
		minV = filter.DateValue(int32(s.MinInt))
		maxV = filter.DateValue(int32(s.MaxInt))

	case lt.ID.IsTimestamp():
		minV = filter.TimestampValue(lt.ID, s.MinInt)
		maxV = filter.TimestampValue(lt.ID, s.MaxInt)

	case s.TypeTag == TagFloat:
		if minV, err = castFloat(s.MinFloat, lt); err != nil {
			return nil, err
		}
		if maxV, err = castFloat(s.MaxFloat, lt); err != nil {
			return nil, err
		}

	case s.TypeTag == TagInt:
		if minV, err = castInt(s.MinInt, lt); err != nil {
			return nil, err
		}
		if maxV, err = castInt(s.MaxInt, lt); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: tag %q for %s", ErrSummary, s.TypeTag, lt)
	}

	c.Min, c.Max = &minV, &maxV
	return c, nil
}

// castFloat reads a double as lt. Integers round to nearest.
func castFloat(f float64, lt filter.LogicalType) (filter.Value, error) {
	if math.IsNaN(f) {
		return filter.Value{}, fmt.Errorf("%w: NaN bound", ErrSummary)
	}
	switch {
	case lt.ID == filter.TypeIDDouble:
		return filter.DoubleValue(f), nil
	case lt.ID == filter.TypeIDFloat:
		if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
			return filter.Value{}, fmt.Errorf("%w: %v overflows FLOAT", ErrSummary, f)
		}
		return filter.FloatValue(float32(f)), nil
	case lt.ID == filter.TypeIDDecimal:
		w, s, _ := lt.Decimal()
		return decimalValue(strconv.FormatFloat(f, 'f', s, 64), w, s)
	case lt.ID.IsInteger():
		r := math.Round(f)
		if lt.ID.IsUnsigned() {
			if r < 0 || r >= math.MaxUint64 {
				return filter.Value{}, fmt.Errorf("%w: %v out of range for %s", ErrSummary, f, lt)
			}
			return castUint(uint64(r), lt)
		}
		if r < math.MinInt64 || r >= math.MaxInt64 {
			return filter.Value{}, fmt.Errorf("%w: %v out of range for %s", ErrSummary, f, lt)
		}
		return castInt(int64(r), lt)
	}
	return filter.Value{}, fmt.Errorf("%w: float summary for %s", ErrSummary, lt)
}

// castInt reads a bigint as lt, checking the target range.
func castInt(n int64, lt filter.LogicalType) (filter.Value, error) {
	switch lt.ID {
	case filter.TypeIDTinyInt, filter.TypeIDSmallInt, filter.TypeIDInteger, filter.TypeIDBigInt:
		lo, hi := signedRange(lt.ID)
		if n < lo || n > hi {
			return filter.Value{}, fmt.Errorf("%w: %d out of range for %s", ErrSummary, n, lt)
		}
		return filter.IntValue(lt.ID, n), nil
	case filter.TypeIDUTinyInt, filter.TypeIDUSmallInt, filter.TypeIDUInteger, filter.TypeIDUBigInt:
		if n < 0 {
			return filter.Value{}, fmt.Errorf("%w: %d out of range for %s", ErrSummary, n, lt)
		}
		return castUint(uint64(n), lt)
	case filter.TypeIDFloat:
		return filter.FloatValue(float32(n)), nil
	case filter.TypeIDDouble:
		return filter.DoubleValue(float64(n)), nil
	case filter.TypeIDDecimal:
		w, s, _ := lt.Decimal()
		text := strconv.FormatInt(n, 10)
		if s > 0 {
			text += "." + strings.Repeat("0", s)
		}
		return decimalValue(text, w, s)
	case filter.TypeIDBoolean:
		return filter.BoolValue(n != 0), nil
	case filter.TypeIDTime:
		return filter.TimeValue(n), nil
	}
	return filter.Value{}, fmt.Errorf("%w: int summary for %s", ErrSummary, lt)
}

func castUint(n uint64, lt filter.LogicalType) (filter.Value, error) {
	var hi uint64
	switch lt.ID {
	case filter.TypeIDUTinyInt:
		hi = math.MaxUint8
	case filter.TypeIDUSmallInt:
		hi = math.MaxUint16
	case filter.TypeIDUInteger:
		hi = math.MaxUint32
	default:
		hi = math.MaxUint64
	}
	if n > hi {
		return filter.Value{}, fmt.Errorf("%w: %d out of range for %s", ErrSummary, n, lt)
	}
	return filter.UintValue(lt.ID, n), nil
}

func signedRange(id filter.LogicalTypeID) (int64, int64) {
	switch id {
	case filter.TypeIDTinyInt:
		return math.MinInt8, math.MaxInt8
	case filter.TypeIDSmallInt:
		return math.MinInt16, math.MaxInt16
	case filter.TypeIDInteger:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

// decimalValue checks that text has at most width-scale integral digits.
func decimalValue(text string, width, scale int) (filter.Value, error) {
	digits := strings.TrimPrefix(text, "-")
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		digits = digits[:i]
	}
	digits = strings.TrimLeft(digits, "0")
	if len(digits) > width-scale {
		return filter.Value{}, fmt.Errorf("%w: %s does not fit DECIMAL(%d,%d)", ErrSummary, text, width, scale)
	}
	return filter.DecimalValue(text, width, scale), nil
}

// Summarize flattens b into a summary for column, the inverse of Ingest.
// Null counts are not kept by b, so only the validity class survives the
// round trip. Bounds that fit no tag yield TagNone.
func Summarize(column int, rows int64, b *BaseStatistics) Summary {
	s := Summary{Column: column, TypeTag: TagNone, RowCount: rows}
	if b == nil {
		return s
	}
	s.DistinctCount = b.DistinctCount

	switch b.Validity() {
	case NoValid:
		if rows == 0 {
			return s
		}
		s.NullCount = rows
		s.TypeTag = TagInt
		return s
	case MaybeNull:
		s.NullCount = 1
	}
	if b.Min == nil || b.Max == nil {
		return s
	}

	id := b.Type.ID
	switch {
	case id == filter.TypeIDVarchar || id == filter.TypeIDChar:
		s.MinString, _ = b.Min.Text()
		s.MaxString, _ = b.Max.Text()
		if b.MaxStringLength != nil {
			s.MaxStringLength = *b.MaxStringLength
		}
		s.TypeTag = TagString
	case id.IsFloat() || id == filter.TypeIDDecimal:
		lo, okLo := b.Min.Float64()
		hi, okHi := b.Max.Float64()
		if okLo && okHi {
			s.MinFloat, s.MaxFloat = lo, hi
			s.TypeTag = TagFloat
		}
	default:
		lo, okLo := b.Min.Int64()
		hi, okHi := b.Max.Int64()
		if okLo && okHi {
			s.MinInt, s.MaxInt = lo, hi
			s.TypeTag = TagInt
		}
	}
	return s
}

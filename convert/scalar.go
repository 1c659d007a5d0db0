package convert

import (
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/scalar"

	"github.com/hugr-lab/duckbridge/filter"
)

var (
	// ErrUnsupportedType is returned for Arrow or host types with no
	// conversion.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrOutOfRange is returned when a value does not fit the target type.
	ErrOutOfRange = errors.New("value out of range")
	// ErrPayload is returned when a value's payload does not match its
	// declared logical type.
	ErrPayload = errors.New("unexpected value payload")
)

// ConversionError is scoped to one value. The filter that carried it is not
// pushed down; other filters are unaffected.
type ConversionError struct {
	Value filter.Value
	Type  arrow.DataType
	Err   error
}

func (e *ConversionError) Error() string {
	target := "<nil>"
	if e.Type != nil {
		target = e.Type.String()
	}
	if e.Value.Type.ID == "" && !e.Value.IsNull && e.Value.Data == nil {
		return fmt.Sprintf("convert: %s: %v", target, e.Err)
	}
	return fmt.Sprintf("convert: %s to %s: %v", e.Value.String(), target, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func convErr(v filter.Value, dt arrow.DataType, err error) error {
	return &ConversionError{Value: v, Type: dt, Err: err}
}

// ToArrowScalar converts a host constant into an Arrow scalar of the
// column's type dt.
//
// Integers travel through a 64-bit carrier and are range checked against the
// target width. Floats travel through float64. Decimals are rebuilt from
// their exact decimal text with the column's precision and scale, never
// through binary floating point. Date, time and timestamp values keep their
// integral epoch offset; unit and time zone come from dt, and the offset is
// rescaled only when the host value's own unit differs.
func ToArrowScalar(v filter.Value, dt arrow.DataType) (scalar.Scalar, error) {
	if dt == nil {
		return nil, convErr(v, dt, ErrUnsupportedType)
	}
	if v.IsNull {
		return scalar.MakeNullScalar(dt), nil
	}

	switch t := dt.(type) {
	case *arrow.BooleanType:
		b, ok := v.Data.(bool)
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		return scalar.NewBooleanScalar(b), nil

	case *arrow.Int8Type, *arrow.Int16Type, *arrow.Int32Type, *arrow.Int64Type:
		n, ok := v.Int64()
		if !ok {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return signedScalar(v, n, dt)

	case *arrow.Uint8Type, *arrow.Uint16Type, *arrow.Uint32Type, *arrow.Uint64Type:
		n, ok := v.Uint64()
		if !ok {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return unsignedScalar(v, n, dt)

	case *arrow.Float16Type:
		f, ok := floatPayload(v)
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		return scalar.NewFloat16Scalar(float16.New(float32(f))), nil

	case *arrow.Float32Type:
		f, ok := floatPayload(v)
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		return scalar.NewFloat32Scalar(float32(f)), nil

	case *arrow.Float64Type:
		f, ok := floatPayload(v)
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		return scalar.NewFloat64Scalar(f), nil

	case *arrow.StringType:
		s, ok := v.Data.(string)
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		return scalar.NewStringScalar(s), nil

	case *arrow.LargeStringType:
		s, ok := v.Data.(string)
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		return scalar.NewLargeStringScalar(s), nil

	case *arrow.BinaryType, *arrow.LargeBinaryType:
		b, ok := v.Bytes()
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		sc, err := scalar.MakeScalarParam(b, dt)
		if err != nil {
			return nil, convErr(v, dt, err)
		}
		return sc, nil

	case *arrow.FixedSizeBinaryType:
		b, ok := v.Bytes()
		if !ok {
			return nil, convErr(v, dt, ErrPayload)
		}
		if len(b) != t.ByteWidth {
			return nil, convErr(v, dt, fmt.Errorf("%w: %d bytes for width %d", ErrOutOfRange, len(b), t.ByteWidth))
		}
		sc, err := scalar.MakeScalarParam(b, dt)
		if err != nil {
			return nil, convErr(v, dt, err)
		}
		return sc, nil

	case *arrow.Date32Type:
		days, err := dateDays(v)
		if err != nil {
			return nil, convErr(v, dt, err)
		}
		if days < math.MinInt32 || days > math.MaxInt32 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewDate32Scalar(arrow.Date32(days)), nil

	case *arrow.Date64Type:
		days, err := dateDays(v)
		if err != nil {
			return nil, convErr(v, dt, err)
		}
		ms, ok := mulChecked(days, 86400000)
		if !ok {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewDate64Scalar(arrow.Date64(ms)), nil

	case *arrow.Time32Type:
		n, err := timeIn(v, t.Unit)
		if err != nil {
			return nil, convErr(v, dt, err)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewTime32Scalar(arrow.Time32(n), dt), nil

	case *arrow.Time64Type:
		n, err := timeIn(v, t.Unit)
		if err != nil {
			return nil, convErr(v, dt, err)
		}
		return scalar.NewTime64Scalar(arrow.Time64(n), dt), nil

	case *arrow.TimestampType:
		n, err := timestampIn(v, t.Unit)
		if err != nil {
			return nil, convErr(v, dt, err)
		}
		return scalar.NewTimestampScalar(arrow.Timestamp(n), dt), nil

	case *arrow.Decimal128Type:
		text, ok := v.Text()
		if !ok || !decimalSource(v) {
			return nil, convErr(v, dt, ErrPayload)
		}
		num, err := decimal128.FromString(text, t.Precision, t.Scale)
		if err != nil {
			return nil, convErr(v, dt, fmt.Errorf("%w: %v", ErrOutOfRange, err))
		}
		return scalar.NewDecimal128Scalar(num, dt), nil

	case *arrow.Decimal256Type:
		text, ok := v.Text()
		if !ok || !decimalSource(v) {
			return nil, convErr(v, dt, ErrPayload)
		}
		num, err := decimal256.FromString(text, t.Precision, t.Scale)
		if err != nil {
			return nil, convErr(v, dt, fmt.Errorf("%w: %v", ErrOutOfRange, err))
		}
		return scalar.NewDecimal256Scalar(num, dt), nil
	}

	return nil, convErr(v, dt, ErrUnsupportedType)
}

func signedScalar(v filter.Value, n int64, dt arrow.DataType) (scalar.Scalar, error) {
	switch dt.ID() {
	case arrow.INT8:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewInt8Scalar(int8(n)), nil
	case arrow.INT16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewInt16Scalar(int16(n)), nil
	case arrow.INT32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewInt32Scalar(int32(n)), nil
	}
	return scalar.NewInt64Scalar(n), nil
}

func unsignedScalar(v filter.Value, n uint64, dt arrow.DataType) (scalar.Scalar, error) {
	switch dt.ID() {
	case arrow.UINT8:
		if n > math.MaxUint8 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewUint8Scalar(uint8(n)), nil
	case arrow.UINT16:
		if n > math.MaxUint16 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewUint16Scalar(uint16(n)), nil
	case arrow.UINT32:
		if n > math.MaxUint32 {
			return nil, convErr(v, dt, ErrOutOfRange)
		}
		return scalar.NewUint32Scalar(uint32(n)), nil
	}
	return scalar.NewUint64Scalar(n), nil
}

// floatPayload accepts float constants and integral constants that are
// exactly representable as float64.
func floatPayload(v filter.Value) (float64, bool) {
	switch d := v.Data.(type) {
	case float64:
		return d, true
	case float32:
		return float64(d), true
	case int64:
		if d > 1<<53 || d < -(1<<53) {
			return 0, false
		}
		return float64(d), true
	}
	return 0, false
}

// decimalSource reports whether v's payload has an exact decimal text.
func decimalSource(v filter.Value) bool {
	switch v.Data.(type) {
	case string:
		return v.Type.ID == filter.TypeIDDecimal || v.Type.ID.IsNumeric()
	case int64, uint64, filter.HugeInt, filter.UHugeInt:
		return true
	}
	return false
}

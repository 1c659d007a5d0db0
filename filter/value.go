package filter

import (
	"encoding/hex"
	"math"
	"math/big"
	"strconv"
)

// Value represents a typed host constant. Data holds the canonical Go form
// for the logical type:
//
//	BOOLEAN                      bool
//	TINYINT..BIGINT              int64
//	UTINYINT..UBIGINT            uint64
//	HUGEINT / UHUGEINT           HugeInt / UHugeInt
//	FLOAT, DOUBLE                float64
//	DECIMAL                      string (canonical decimal text)
//	VARCHAR, CHAR, UUID          string
//	BLOB                         []byte
//	DATE                         int64 days since epoch
//	TIME, TIME_TZ                int64 microseconds since midnight
//	TIMESTAMP*                   int64 offset since epoch in the type's unit
type Value struct {
	Type   LogicalType `json:"type"`
	IsNull bool        `json:"is_null"`
	Data   any         `json:"value"`
}

// NullValue returns a NULL of the given type.
func NullValue(lt LogicalType) Value { return Value{Type: lt, IsNull: true} }

// BoolValue returns a BOOLEAN value.
func BoolValue(b bool) Value {
	return Value{Type: LogicalType{ID: TypeIDBoolean}, Data: b}
}

// IntValue returns a signed integer value of the given integer type.
func IntValue(id LogicalTypeID, v int64) Value {
	return Value{Type: LogicalType{ID: id}, Data: v}
}

// UintValue returns an unsigned integer value of the given integer type.
func UintValue(id LogicalTypeID, v uint64) Value {
	return Value{Type: LogicalType{ID: id}, Data: v}
}

// FloatValue returns a FLOAT value.
func FloatValue(v float32) Value {
	return Value{Type: LogicalType{ID: TypeIDFloat}, Data: float64(v)}
}

// DoubleValue returns a DOUBLE value.
func DoubleValue(v float64) Value {
	return Value{Type: LogicalType{ID: TypeIDDouble}, Data: v}
}

// DecimalValue returns a DECIMAL(width, scale) value from its decimal text.
func DecimalValue(text string, width, scale int) Value {
	return Value{Type: DecimalType(width, scale), Data: text}
}

// VarcharValue returns a VARCHAR value.
func VarcharValue(s string) Value {
	return Value{Type: LogicalType{ID: TypeIDVarchar}, Data: s}
}

// BlobValue returns a BLOB value.
func BlobValue(b []byte) Value {
	return Value{Type: LogicalType{ID: TypeIDBlob}, Data: b}
}

// DateValue returns a DATE value as days since 1970-01-01.
func DateValue(days int32) Value {
	return Value{Type: LogicalType{ID: TypeIDDate}, Data: int64(days)}
}

// TimeValue returns a TIME value as microseconds since midnight.
func TimeValue(micros int64) Value {
	return Value{Type: LogicalType{ID: TypeIDTime}, Data: micros}
}

// TimestampValue returns a timestamp of the given precision. v is the offset
// since the epoch in that precision's unit.
func TimestampValue(id LogicalTypeID, v int64) Value {
	return Value{Type: LogicalType{ID: id}, Data: v}
}

// Int64 returns the value as a signed 64-bit integer when it is held as an
// integral carrier that fits.
func (v Value) Int64() (int64, bool) {
	switch d := v.Data.(type) {
	case int64:
		return d, true
	case uint64:
		if d > math.MaxInt64 {
			return 0, false
		}
		return int64(d), true
	case HugeInt:
		if (d.Upper == 0 && d.Lower <= math.MaxInt64) || (d.Upper == -1 && d.Lower > math.MaxInt64) {
			return int64(d.Lower), true
		}
	}
	return 0, false
}

// Uint64 returns the value as an unsigned 64-bit integer when it fits.
func (v Value) Uint64() (uint64, bool) {
	switch d := v.Data.(type) {
	case uint64:
		return d, true
	case int64:
		if d < 0 {
			return 0, false
		}
		return uint64(d), true
	case UHugeInt:
		if d.Upper == 0 {
			return d.Lower, true
		}
	case HugeInt:
		if d.Upper == 0 {
			return d.Lower, true
		}
	}
	return 0, false
}

// Float64 returns the value as a double.
func (v Value) Float64() (float64, bool) {
	switch d := v.Data.(type) {
	case float64:
		return d, true
	case float32:
		return float64(d), true
	case int64:
		return float64(d), true
	case uint64:
		return float64(d), true
	case string:
		if v.Type.ID == TypeIDDecimal {
			f, err := strconv.ParseFloat(d, 64)
			return f, err == nil
		}
	}
	return 0, false
}

// Bytes returns string or blob payloads.
func (v Value) Bytes() ([]byte, bool) {
	switch d := v.Data.(type) {
	case []byte:
		return d, true
	case string:
		return []byte(d), true
	}
	return nil, false
}

// IsNaN reports whether v is a floating point NaN.
func (v Value) IsNaN() bool {
	if v.IsNull || !v.Type.ID.IsFloat() {
		return false
	}
	f, ok := v.Data.(float64)
	return ok && math.IsNaN(f)
}

// Text returns the canonical textual form of v. Decimals render as their
// exact decimal text; other numerics use the shortest round-trip form.
func (v Value) Text() (string, bool) {
	if v.IsNull {
		return "", false
	}
	switch d := v.Data.(type) {
	case bool:
		return strconv.FormatBool(d), true
	case int64:
		return strconv.FormatInt(d, 10), true
	case uint64:
		return strconv.FormatUint(d, 10), true
	case float64:
		if v.Type.ID == TypeIDFloat {
			return strconv.FormatFloat(d, 'g', -1, 32), true
		}
		if v.Type.ID == TypeIDDecimal {
			return strconv.FormatFloat(d, 'f', -1, 64), true
		}
		return strconv.FormatFloat(d, 'g', -1, 64), true
	case string:
		return d, true
	case []byte:
		return string(d), true
	case HugeInt:
		bi := new(big.Int).SetInt64(d.Upper)
		bi.Lsh(bi, 64)
		bi.Or(bi, new(big.Int).SetUint64(d.Lower))
		return bi.String(), true
	case UHugeInt:
		bi := new(big.Int).SetUint64(d.Upper)
		bi.Lsh(bi, 64)
		bi.Or(bi, new(big.Int).SetUint64(d.Lower))
		return bi.String(), true
	}
	return "", false
}

// String renders v for logs and debug output.
func (v Value) String() string {
	if v.IsNull {
		return "NULL"
	}
	if b, ok := v.Data.([]byte); ok {
		return `\x` + hex.EncodeToString(b)
	}
	if s, ok := v.Text(); ok {
		if v.Type.ID == TypeIDVarchar || v.Type.ID == TypeIDChar {
			return strconv.Quote(s)
		}
		return s
	}
	return "?"
}

// Package convert maps values between the host's logical model and Arrow:
// host constants become typed Arrow scalars for predicate evaluation, and
// Arrow array slots become host values for statistics.
package convert

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/filter"
)

// LogicalTypeOf returns the host logical type for an Arrow type.
// Dictionary types map to their value type.
func LogicalTypeOf(dt arrow.DataType) (filter.LogicalType, error) {
	id := func(i filter.LogicalTypeID) (filter.LogicalType, error) {
		return filter.LogicalType{ID: i}, nil
	}

	switch t := dt.(type) {
	case *arrow.Decimal128Type:
		return filter.DecimalType(int(t.Precision), int(t.Scale)), nil
	case *arrow.Decimal256Type:
		return filter.DecimalType(int(t.Precision), int(t.Scale)), nil
	case *arrow.TimestampType:
		if t.TimeZone != "" {
			return id(filter.TypeIDTimestampTZ)
		}
		switch t.Unit {
		case arrow.Second:
			return id(filter.TypeIDTimestampSec)
		case arrow.Millisecond:
			return id(filter.TypeIDTimestampMs)
		case arrow.Nanosecond:
			return id(filter.TypeIDTimestampNs)
		}
		return id(filter.TypeIDTimestamp)
	case *arrow.DictionaryType:
		return LogicalTypeOf(t.ValueType)
	}

	switch dt.ID() {
	case arrow.NULL:
		return id(filter.TypeIDSQLNull)
	case arrow.BOOL:
		return id(filter.TypeIDBoolean)
	case arrow.INT8:
		return id(filter.TypeIDTinyInt)
	case arrow.INT16:
		return id(filter.TypeIDSmallInt)
	case arrow.INT32:
		return id(filter.TypeIDInteger)
	case arrow.INT64:
		return id(filter.TypeIDBigInt)
	case arrow.UINT8:
		return id(filter.TypeIDUTinyInt)
	case arrow.UINT16:
		return id(filter.TypeIDUSmallInt)
	case arrow.UINT32:
		return id(filter.TypeIDUInteger)
	case arrow.UINT64:
		return id(filter.TypeIDUBigInt)
	case arrow.FLOAT16, arrow.FLOAT32:
		return id(filter.TypeIDFloat)
	case arrow.FLOAT64:
		return id(filter.TypeIDDouble)
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return id(filter.TypeIDVarchar)
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.BINARY_VIEW, arrow.FIXED_SIZE_BINARY:
		return id(filter.TypeIDBlob)
	case arrow.DATE32, arrow.DATE64:
		return id(filter.TypeIDDate)
	case arrow.TIME32, arrow.TIME64:
		return id(filter.TypeIDTime)
	case arrow.INTERVAL_MONTHS, arrow.INTERVAL_DAY_TIME, arrow.INTERVAL_MONTH_DAY_NANO:
		return id(filter.TypeIDInterval)
	case arrow.STRUCT:
		return id(filter.TypeIDStruct)
	case arrow.LIST, arrow.LARGE_LIST, arrow.LIST_VIEW, arrow.LARGE_LIST_VIEW:
		return id(filter.TypeIDList)
	case arrow.FIXED_SIZE_LIST:
		return id(filter.TypeIDArray)
	case arrow.MAP:
		return id(filter.TypeIDMap)
	case arrow.SPARSE_UNION, arrow.DENSE_UNION:
		return id(filter.TypeIDUnion)
	}
	return filter.LogicalType{}, &ConversionError{Type: dt, Err: ErrUnsupportedType}
}

// IsViewEncoded reports whether dt uses the string-view or binary-view
// layout.
func IsViewEncoded(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.STRING_VIEW, arrow.BINARY_VIEW:
		return true
	}
	return false
}

// ArrowTypeOf returns the Arrow type the host uses when exporting lt.
// Nested types and types without an Arrow counterpart return an error.
func ArrowTypeOf(lt filter.LogicalType) (arrow.DataType, error) {
	switch lt.ID.Normalize() {
	case filter.TypeIDBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case filter.TypeIDTinyInt:
		return arrow.PrimitiveTypes.Int8, nil
	case filter.TypeIDSmallInt:
		return arrow.PrimitiveTypes.Int16, nil
	case filter.TypeIDInteger:
		return arrow.PrimitiveTypes.Int32, nil
	case filter.TypeIDBigInt:
		return arrow.PrimitiveTypes.Int64, nil
	case filter.TypeIDUTinyInt:
		return arrow.PrimitiveTypes.Uint8, nil
	case filter.TypeIDUSmallInt:
		return arrow.PrimitiveTypes.Uint16, nil
	case filter.TypeIDUInteger:
		return arrow.PrimitiveTypes.Uint32, nil
	case filter.TypeIDUBigInt:
		return arrow.PrimitiveTypes.Uint64, nil
	case filter.TypeIDFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case filter.TypeIDDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case filter.TypeIDDecimal:
		w, s, _ := lt.Decimal()
		if w > 38 {
			return &arrow.Decimal256Type{Precision: int32(w), Scale: int32(s)}, nil
		}
		return &arrow.Decimal128Type{Precision: int32(w), Scale: int32(s)}, nil
	case filter.TypeIDVarchar, filter.TypeIDChar:
		return arrow.BinaryTypes.String, nil
	case filter.TypeIDBlob:
		return arrow.BinaryTypes.Binary, nil
	case filter.TypeIDDate:
		return arrow.FixedWidthTypes.Date32, nil
	case filter.TypeIDTime:
		return arrow.FixedWidthTypes.Time64us, nil
	case filter.TypeIDTimestampSec:
		return &arrow.TimestampType{Unit: arrow.Second}, nil
	case filter.TypeIDTimestampMs:
		return &arrow.TimestampType{Unit: arrow.Millisecond}, nil
	case filter.TypeIDTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
	case filter.TypeIDTimestampNs:
		return &arrow.TimestampType{Unit: arrow.Nanosecond}, nil
	case filter.TypeIDTimestampTZ:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case filter.TypeIDInterval:
		return arrow.FixedWidthTypes.MonthDayNanoInterval, nil
	case filter.TypeIDUUID:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, nil
	}
	return nil, &ConversionError{Err: fmt.Errorf("%w: %s", ErrUnsupportedType, lt)}
}

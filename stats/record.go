package stats

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/scalar"

	"github.com/hugr-lab/duckbridge/convert"
	"github.com/hugr-lab/duckbridge/filter"
)

// RecordSchema returns the one-row layout statistics travel in. min and max
// use the column type.
func RecordSchema(columnType arrow.DataType) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "has_not_null", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "has_null", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "distinct_count", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "min", Type: columnType, Nullable: true},
		{Name: "max", Type: columnType, Nullable: true},
		{Name: "max_string_length", Type: arrow.PrimitiveTypes.Uint64, Nullable: true},
		{Name: "contains_unicode", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	}, nil)
}

// Record encodes b as a one-row record batch. Unknown fields are null.
func Record(alloc memory.Allocator, columnType arrow.DataType, b *BaseStatistics) (arrow.RecordBatch, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	schema := RecordSchema(columnType)

	arrays := make([]arrow.Array, 0, schema.NumFields())
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	boolArray := func(v bool) arrow.Array {
		bb := array.NewBooleanBuilder(alloc)
		defer bb.Release()
		bb.Append(v)
		return bb.NewArray()
	}
	uintArray := func(v *uint64) arrow.Array {
		ub := array.NewUint64Builder(alloc)
		defer ub.Release()
		if v == nil {
			ub.AppendNull()
		} else {
			ub.Append(*v)
		}
		return ub.NewArray()
	}
	boundArray := func(v *filter.Value) (arrow.Array, error) {
		sc := scalar.MakeNullScalar(columnType)
		if v != nil {
			var err error
			if sc, err = convert.ToArrowScalar(*v, columnType); err != nil {
				return nil, err
			}
		}
		return scalar.MakeArrayFromScalar(sc, 1, alloc)
	}

	arrays = append(arrays, boolArray(b.HasNotNull), boolArray(b.HasNull), uintArray(b.DistinctCount))
	for _, v := range []*filter.Value{b.Min, b.Max} {
		arr, err := boundArray(v)
		if err != nil {
			return nil, fmt.Errorf("stats: encode bound: %w", err)
		}
		arrays = append(arrays, arr)
	}
	arrays = append(arrays, uintArray(b.MaxStringLength), boolArray(b.ContainsUnicode))

	// NewRecordBatch retains the arrays; the deferred release drops ours.
	return array.NewRecordBatch(schema, arrays, 1), nil
}

// FromRecord decodes the first row of a record built by Record.
func FromRecord(rec arrow.RecordBatch) (*BaseStatistics, error) {
	if rec.NumRows() < 1 {
		return nil, fmt.Errorf("stats: empty statistics record")
	}
	schema := rec.Schema()
	col := func(name string) (arrow.Array, error) {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("stats: statistics record has no %q field", name)
		}
		return rec.Column(idx[0]), nil
	}

	minArr, err := col("min")
	if err != nil {
		return nil, err
	}
	lt, err := convert.LogicalTypeOf(minArr.DataType())
	if err != nil {
		return nil, err
	}
	b := &BaseStatistics{Type: lt}

	for _, f := range []struct {
		name string
		dst  *bool
	}{{"has_not_null", &b.HasNotNull}, {"has_null", &b.HasNull}, {"contains_unicode", &b.ContainsUnicode}} {
		arr, err := col(f.name)
		if err != nil {
			return nil, err
		}
		ba, ok := arr.(*array.Boolean)
		if !ok {
			return nil, fmt.Errorf("stats: %s is %s, want bool", f.name, arr.DataType())
		}
		*f.dst = ba.IsValid(0) && ba.Value(0)
	}

	for _, f := range []struct {
		name string
		dst  **uint64
	}{{"distinct_count", &b.DistinctCount}, {"max_string_length", &b.MaxStringLength}} {
		arr, err := col(f.name)
		if err != nil {
			return nil, err
		}
		ua, ok := arr.(*array.Uint64)
		if !ok {
			return nil, fmt.Errorf("stats: %s is %s, want uint64", f.name, arr.DataType())
		}
		if ua.IsValid(0) {
			v := ua.Value(0)
			*f.dst = &v
		}
	}

	for _, f := range []struct {
		name string
		dst  **filter.Value
	}{{"min", &b.Min}, {"max", &b.Max}} {
		arr, err := col(f.name)
		if err != nil {
			return nil, err
		}
		if arr.IsNull(0) {
			continue
		}
		v, err := convert.ValueAt(arr, 0)
		if err != nil {
			return nil, fmt.Errorf("stats: decode %s: %w", f.name, err)
		}
		*f.dst = &v
	}
	return b, nil
}

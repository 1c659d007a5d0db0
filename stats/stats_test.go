package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/duckbridge/filter"
)

func int64Chunked(t *testing.T, mem memory.Allocator, chunks ...[]*int64) *arrow.Chunked {
	t.Helper()
	arrs := make([]arrow.Array, 0, len(chunks))
	for _, vals := range chunks {
		b := array.NewInt64Builder(mem)
		for _, v := range vals {
			if v == nil {
				b.AppendNull()
			} else {
				b.Append(*v)
			}
		}
		arrs = append(arrs, b.NewArray())
		b.Release()
	}
	c := arrow.NewChunked(arrow.PrimitiveTypes.Int64, arrs)
	for _, a := range arrs {
		a.Release()
	}
	return c
}

func ptr[T any](v T) *T { return &v }

func TestDeriveIntegers(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	col := int64Chunked(t, mem, []*int64{ptr[int64](1), ptr[int64](2)}, []*int64{ptr[int64](3), nil})
	defer col.Release()

	c, err := Derive(col, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("expected statistics")
	}
	if c.NullCount != 1 || c.RowCount != 4 {
		t.Errorf("unexpected counts %d/%d", c.NullCount, c.RowCount)
	}
	if c.Validity() != MaybeNull {
		t.Errorf("expected MaybeNull, got %s", c.Validity())
	}
	if n, _ := c.Min.Int64(); n != 1 {
		t.Errorf("expected min 1, got %v", c.Min)
	}
	if n, _ := c.Max.Int64(); n != 3 {
		t.Errorf("expected max 3, got %v", c.Max)
	}
	if c.Type.ID != filter.TypeIDBigInt {
		t.Errorf("unexpected type %s", c.Type)
	}
	if c.DistinctCount != nil || c.MaxStringLength != nil {
		t.Error("distinct count and string length must be absent")
	}
}

func TestDeriveNullClassification(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tests := []struct {
		name    string
		values  []*int64
		want    Validity
		hasMinV bool
	}{
		{"no nulls", []*int64{ptr[int64](5), ptr[int64](-5)}, NoNulls, true},
		{"all null", []*int64{nil, nil}, NoValid, false},
		{"mixed", []*int64{nil, ptr[int64](0)}, MaybeNull, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := int64Chunked(t, mem, tt.values)
			defer col.Release()

			c, err := Derive(col, DefaultOptions())
			if err != nil {
				t.Fatal(err)
			}
			if c.Validity() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, c.Validity())
			}
			if (c.Min != nil) != tt.hasMinV {
				t.Errorf("min presence = %v", c.Min != nil)
			}
		})
	}
}

func TestDeriveNaN(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewFloat64Builder(mem)
	b.AppendValues([]float64{1, math.NaN(), 3}, nil)
	arr := b.NewArray()
	b.Release()
	col := arrow.NewChunked(arr.DataType(), []arrow.Array{arr})
	arr.Release()
	defer col.Release()

	c, err := Derive(col, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !c.HasNaN {
		t.Error("expected NaN to be detected")
	}
	if c.Min != nil || c.Max != nil {
		t.Errorf("min/max must be absent, got %v/%v", c.Min, c.Max)
	}
	if c.Validity() != NoNulls {
		t.Errorf("null classification must survive, got %s", c.Validity())
	}

	b = array.NewFloat64Builder(mem)
	b.AppendValues([]float64{2.5, -1, 0}, []bool{true, true, false})
	clean := b.NewArray()
	b.Release()
	col2 := arrow.NewChunked(clean.DataType(), []arrow.Array{clean})
	clean.Release()
	defer col2.Release()

	c, err = Derive(col2, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := c.Min.Float64(); f != -1 {
		t.Errorf("expected min -1, got %v", c.Min)
	}
	if f, _ := c.Max.Float64(); f != 2.5 {
		t.Errorf("expected max 2.5, got %v", c.Max)
	}
}

func TestDeriveStrings(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	sb := array.NewLargeStringBuilder(mem)
	sb.AppendValues([]string{"pear", "apple", "", "zebra-crossing"}, []bool{true, true, false, true})
	arr := sb.NewArray()
	sb.Release()
	sb = array.NewLargeStringBuilder(mem)
	sb.AppendValues([]string{"héllo"}, nil)
	arr2 := sb.NewArray()
	sb.Release()

	col := arrow.NewChunked(arr.DataType(), []arrow.Array{arr, arr2})
	arr.Release()
	arr2.Release()
	defer col.Release()

	c, err := Derive(col, Options{ComputeMinMax: true, ComputeDistinctCount: true})
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := c.Min.Text(); s != "apple" {
		t.Errorf("expected min apple, got %v", c.Min)
	}
	if s, _ := c.Max.Text(); s != "zebra-crossing" {
		t.Errorf("expected max zebra-crossing, got %v", c.Max)
	}
	if c.MaxStringLength == nil || *c.MaxStringLength != 14 {
		t.Errorf("expected max length 14, got %v", c.MaxStringLength)
	}
	if !c.ContainsUnicode {
		t.Error("expected unicode to be detected")
	}
	if c.DistinctCount == nil || *c.DistinctCount != 4 {
		t.Errorf("expected 4 distinct values, got %v", c.DistinctCount)
	}

	base := ToBase(c)
	if s, _ := base.Max.Text(); s != "zebra-cr" {
		t.Errorf("expected max prefix zebra-cr, got %q", s)
	}
	if s, _ := c.Max.Text(); s != "zebra-crossing" {
		t.Error("ToBase must not modify the column statistics")
	}
	if !base.HasNull || !base.HasNotNull || base.Validity() != MaybeNull {
		t.Errorf("unexpected validity %+v", base)
	}
}

func TestDeriveDistinct(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	vals := make([]*int64, 0, 3000)
	for i := 0; i < 3000; i++ {
		vals = append(vals, ptr(int64(i%1000)))
	}
	col := int64Chunked(t, mem, vals)
	defer col.Release()

	c, err := Derive(col, Options{ComputeMinMax: true, ComputeDistinctCount: true})
	if err != nil {
		t.Fatal(err)
	}
	got := float64(*c.DistinctCount)
	if math.Abs(got-1000)/1000 > 0.05 {
		t.Errorf("distinct estimate %v too far from 1000", got)
	}
}

func TestDeriveUnknown(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	col := int64Chunked(t, mem, []*int64{ptr[int64](1)})
	defer col.Release()

	c, err := Derive(col, Options{})
	if err != nil || c != nil {
		t.Errorf("disabled statistics must be unknown, got %v, %v", c, err)
	}

	vb := array.NewStringViewBuilder(mem)
	vb.Append("x")
	view := vb.NewArray()
	vb.Release()
	vcol := arrow.NewChunked(view.DataType(), []arrow.Array{view})
	view.Release()
	defer vcol.Release()

	c, err = Derive(vcol, DefaultOptions())
	if err != nil || c != nil {
		t.Errorf("view columns must be unknown, got %v, %v", c, err)
	}

	bb := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	bb.Append([]byte{1})
	bin := bb.NewArray()
	bb.Release()
	bcol := arrow.NewChunked(bin.DataType(), []arrow.Array{bin})
	bin.Release()
	defer bcol.Release()

	if c, _ := Derive(bcol, DefaultOptions()); c != nil {
		t.Error("binary columns must be unknown")
	}
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		lt      filter.LogicalType
		min     string
		max     string
		wantErr bool
		wantNil bool
	}{
		{"none", Summary{TypeTag: TagNone}, filter.LogicalType{ID: filter.TypeIDBigInt}, "", "", false, true},
		{"int", Summary{TypeTag: TagInt, RowCount: 10, NullCount: 1, MinInt: -3, MaxInt: 9}, filter.LogicalType{ID: filter.TypeIDInteger}, "-3", "9", false, false},
		{"int overflow", Summary{TypeTag: TagInt, RowCount: 1, MinInt: 0, MaxInt: 300}, filter.LogicalType{ID: filter.TypeIDTinyInt}, "", "", true, false},
		{"uint", Summary{TypeTag: TagInt, RowCount: 1, MinInt: 0, MaxInt: 255}, filter.LogicalType{ID: filter.TypeIDUTinyInt}, "0", "255", false, false},
		{"uint negative", Summary{TypeTag: TagInt, RowCount: 1, MinInt: -1, MaxInt: 2}, filter.LogicalType{ID: filter.TypeIDUInteger}, "", "", true, false},
		{"float to double", Summary{TypeTag: TagFloat, RowCount: 2, MinFloat: 0.5, MaxFloat: 7.25}, filter.LogicalType{ID: filter.TypeIDDouble}, "0.5", "7.25", false, false},
		{"float to int", Summary{TypeTag: TagFloat, RowCount: 2, MinFloat: 1.4, MaxFloat: 2.6}, filter.LogicalType{ID: filter.TypeIDBigInt}, "1", "3", false, false},
		{"float to decimal", Summary{TypeTag: TagFloat, RowCount: 2, MinFloat: 1.5, MaxFloat: 20.25}, filter.DecimalType(6, 2), "1.50", "20.25", false, false},
		{"int to decimal", Summary{TypeTag: TagInt, RowCount: 2, MinInt: 3, MaxInt: 40}, filter.DecimalType(6, 2), "3.00", "40.00", false, false},
		{"decimal too wide", Summary{TypeTag: TagInt, RowCount: 2, MinInt: 3, MaxInt: 123456}, filter.DecimalType(6, 2), "", "", true, false},
		{"date from ints", Summary{TypeTag: TagInt, RowCount: 2, MinInt: 1, MaxInt: 19000}, filter.LogicalType{ID: filter.TypeIDDate}, "1", "19000", false, false},
		{"timestamp ignores float tag", Summary{TypeTag: TagFloat, RowCount: 2, MinInt: 5, MaxInt: 6, MinFloat: 99}, filter.LogicalType{ID: filter.TypeIDTimestampTZ}, "5", "6", false, false},
		{"string", Summary{TypeTag: TagString, RowCount: 2, MinString: "a", MaxString: "zz", MaxStringLength: 12}, filter.LogicalType{ID: filter.TypeIDVarchar}, "a", "zz", false, false},
		{"float nan", Summary{TypeTag: TagFloat, RowCount: 2, MinFloat: math.NaN(), MaxFloat: 1}, filter.LogicalType{ID: filter.TypeIDDouble}, "", "", true, false},
		{"bad tag", Summary{TypeTag: 'x', RowCount: 2}, filter.LogicalType{ID: filter.TypeIDBigInt}, "", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Ingest(tt.summary, tt.lt)
			if tt.wantErr {
				if !errors.Is(err, ErrSummary) {
					t.Fatalf("expected ErrSummary, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if c != nil {
					t.Fatal("expected unknown statistics")
				}
				return
			}
			if got, _ := c.Min.Text(); got != tt.min {
				t.Errorf("min: got %s, want %s", got, tt.min)
			}
			if got, _ := c.Max.Text(); got != tt.max {
				t.Errorf("max: got %s, want %s", got, tt.max)
			}
			if c.Min.Type.ID != tt.lt.ID {
				t.Errorf("min type %s, want %s", c.Min.Type, tt.lt)
			}
		})
	}
}

func TestIngestAllNull(t *testing.T) {
	c, err := Ingest(Summary{TypeTag: TagInt, RowCount: 3, NullCount: 3}, filter.LogicalType{ID: filter.TypeIDBigInt})
	if err != nil {
		t.Fatal(err)
	}
	if c.Validity() != NoValid || c.Min != nil {
		t.Errorf("expected all-null column without bounds, got %+v", c)
	}

	c, err = Ingest(Summary{TypeTag: TagString, RowCount: 2, MinString: "a", MaxString: "ab"}, filter.LogicalType{ID: filter.TypeIDVarchar})
	if err != nil {
		t.Fatal(err)
	}
	if c.MaxStringLength == nil || *c.MaxStringLength != 2 {
		t.Errorf("expected max length from bounds, got %v", c.MaxStringLength)
	}
}

func TestSummarize(t *testing.T) {
	bigint := filter.LogicalType{ID: filter.TypeIDBigInt}
	lo, hi := filter.IntValue(filter.TypeIDBigInt, -2), filter.IntValue(filter.TypeIDBigInt, 9)
	text := filter.LogicalType{ID: filter.TypeIDVarchar}
	a, z := filter.VarcharValue("apple"), filter.VarcharValue("zebra-cr")
	n := uint64(14)

	tests := []struct {
		name     string
		rows     int64
		in       *BaseStatistics
		tag      byte
		validity Validity
	}{
		{"nil", 5, nil, TagNone, NoNulls},
		{"integers", 5, &BaseStatistics{Type: bigint, HasNotNull: true, Min: &lo, Max: &hi}, TagInt, NoNulls},
		{"maybe null", 5, &BaseStatistics{Type: bigint, HasNull: true, HasNotNull: true, Min: &lo, Max: &hi}, TagInt, MaybeNull},
		{"all null", 5, &BaseStatistics{Type: bigint, HasNull: true}, TagInt, NoValid},
		{"text", 5, &BaseStatistics{Type: text, HasNotNull: true, Min: &a, Max: &z, MaxStringLength: &n}, TagString, NoNulls},
		{"no bounds", 5, &BaseStatistics{Type: bigint, HasNotNull: true}, TagNone, NoNulls},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(3, tt.rows, tt.in)
			if s.Column != 3 || s.TypeTag != tt.tag {
				t.Fatalf("unexpected summary %+v", s)
			}
			if tt.tag == TagNone {
				return
			}
			c, err := Ingest(s, tt.in.Type)
			if err != nil {
				t.Fatal(err)
			}
			if c.Validity() != tt.validity {
				t.Errorf("expected %s, got %s", tt.validity, c.Validity())
			}
			if tt.in.Min != nil && c.Min.String() != tt.in.Min.String() {
				t.Errorf("min changed: %s to %s", tt.in.Min, c.Min)
			}
			if tt.in.MaxStringLength != nil && *c.MaxStringLength != n {
				t.Errorf("max length changed: %d", *c.MaxStringLength)
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	minV := filter.IntValue(filter.TypeIDInteger, -4)
	maxV := filter.IntValue(filter.TypeIDInteger, 12)
	in := &BaseStatistics{
		Type:          filter.LogicalType{ID: filter.TypeIDInteger},
		HasNull:       true,
		HasNotNull:    true,
		Min:           &minV,
		Max:           &maxV,
		DistinctCount: ptr[uint64](7),
	}

	rec, err := Record(mem, arrow.PrimitiveTypes.Int32, in)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Release()

	if rec.NumRows() != 1 || rec.NumCols() != 7 {
		t.Fatalf("unexpected shape %dx%d", rec.NumRows(), rec.NumCols())
	}

	out, err := FromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if out.Validity() != MaybeNull {
		t.Errorf("unexpected validity %s", out.Validity())
	}
	if n, _ := out.Min.Int64(); n != -4 {
		t.Errorf("unexpected min %v", out.Min)
	}
	if n, _ := out.Max.Int64(); n != 12 {
		t.Errorf("unexpected max %v", out.Max)
	}
	if out.DistinctCount == nil || *out.DistinctCount != 7 {
		t.Errorf("unexpected distinct count %v", out.DistinctCount)
	}
	if out.MaxStringLength != nil {
		t.Error("max string length must stay unknown")
	}

	empty, err := Record(mem, arrow.BinaryTypes.String, &BaseStatistics{HasNull: true})
	if err != nil {
		t.Fatal(err)
	}
	defer empty.Release()
	back, err := FromRecord(empty)
	if err != nil {
		t.Fatal(err)
	}
	if back.Min != nil || back.Max != nil || back.Validity() != NoValid {
		t.Errorf("unexpected decode %+v", back)
	}
}

package stats

import (
	"cmp"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/axiomhq/hyperloglog"
	"github.com/cespare/xxhash/v2"

	"github.com/hugr-lab/duckbridge/convert"
)

// hllPrecision gives 2^12 registers, a standard error of about 1.6%.
const hllPrecision = 12

// Derive computes statistics for a materialized column. It returns nil,
// meaning unknown, when statistics are disabled or the column type has no
// ordering the host can use.
//
// Floating columns are checked for NaN first: the host orders NaN above
// every other value, so a min/max that skipped it would be wrong. Such
// columns keep their null classification but report no min/max.
func Derive(col *arrow.Chunked, opts Options) (*Column, error) {
	if col == nil || !opts.ComputeMinMax {
		return nil, nil
	}
	dt := col.DataType()
	if !derivable(dt) {
		return nil, nil
	}
	lt, err := convert.LogicalTypeOf(dt)
	if err != nil {
		return nil, nil
	}

	chunks := col.Chunks()
	c := &Column{
		Type:      lt,
		RowCount:  int64(col.Len()),
		NullCount: int64(col.NullN()),
	}

	if isFloat(dt) {
		c.HasNaN = anyNaN(chunks)
	}
	if !c.HasNaN && c.NullCount < c.RowCount {
		lo, hi, ok := extremes(dt, chunks)
		if ok {
			minV, err := convert.ValueAt(chunks[lo.chunk], lo.index)
			if err != nil {
				return nil, fmt.Errorf("stats: min of %s: %w", dt, err)
			}
			maxV, err := convert.ValueAt(chunks[hi.chunk], hi.index)
			if err != nil {
				return nil, fmt.Errorf("stats: max of %s: %w", dt, err)
			}
			c.Min, c.Max = &minV, &maxV
		}
	}

	if isText(dt) {
		n, unicode := textLengths(chunks)
		c.MaxStringLength = &n
		c.ContainsUnicode = unicode
	}

	if opts.ComputeDistinctCount {
		n, err := distinct(chunks)
		if err != nil {
			return nil, err
		}
		c.DistinctCount = &n
	}
	return c, nil
}

// derivable lists the types with a host-compatible ordering. View, nested
// and binary layouts are skipped.
func derivable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.DATE32, arrow.DATE64, arrow.TIME32, arrow.TIME64, arrow.TIMESTAMP,
		arrow.STRING, arrow.LARGE_STRING:
		return true
	}
	return false
}

func isFloat(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

func isText(dt arrow.DataType) bool {
	return dt.ID() == arrow.STRING || dt.ID() == arrow.LARGE_STRING
}

func anyNaN(chunks []arrow.Array) bool {
	for _, arr := range chunks {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				continue
			}
			var nan bool
			switch a := arr.(type) {
			case *array.Float64:
				nan = math.IsNaN(a.Value(i))
			case *array.Float32:
				nan = math.IsNaN(float64(a.Value(i)))
			case *array.Float16:
				nan = a.Value(i).IsNaN()
			}
			if nan {
				return true
			}
		}
	}
	return false
}

type position struct{ chunk, index int }

// extremes returns the positions of the smallest and largest valid values.
func extremes(dt arrow.DataType, chunks []arrow.Array) (lo, hi position, ok bool) {
	switch dt.ID() {
	case arrow.INT8:
		return scan(chunks, accessor[int8, *array.Int8], cmp.Less[int8])
	case arrow.INT16:
		return scan(chunks, accessor[int16, *array.Int16], cmp.Less[int16])
	case arrow.INT32:
		return scan(chunks, accessor[int32, *array.Int32], cmp.Less[int32])
	case arrow.INT64:
		return scan(chunks, accessor[int64, *array.Int64], cmp.Less[int64])
	case arrow.UINT8:
		return scan(chunks, accessor[uint8, *array.Uint8], cmp.Less[uint8])
	case arrow.UINT16:
		return scan(chunks, accessor[uint16, *array.Uint16], cmp.Less[uint16])
	case arrow.UINT32:
		return scan(chunks, accessor[uint32, *array.Uint32], cmp.Less[uint32])
	case arrow.UINT64:
		return scan(chunks, accessor[uint64, *array.Uint64], cmp.Less[uint64])
	case arrow.FLOAT16:
		return scan(chunks, accessor[float16.Num, *array.Float16], func(a, b float16.Num) bool {
			return a.Float32() < b.Float32()
		})
	case arrow.FLOAT32:
		return scan(chunks, accessor[float32, *array.Float32], cmp.Less[float32])
	case arrow.FLOAT64:
		return scan(chunks, accessor[float64, *array.Float64], cmp.Less[float64])
	case arrow.DATE32:
		return scan(chunks, accessor[arrow.Date32, *array.Date32], cmp.Less[arrow.Date32])
	case arrow.DATE64:
		return scan(chunks, accessor[arrow.Date64, *array.Date64], cmp.Less[arrow.Date64])
	case arrow.TIME32:
		return scan(chunks, accessor[arrow.Time32, *array.Time32], cmp.Less[arrow.Time32])
	case arrow.TIME64:
		return scan(chunks, accessor[arrow.Time64, *array.Time64], cmp.Less[arrow.Time64])
	case arrow.TIMESTAMP:
		return scan(chunks, accessor[arrow.Timestamp, *array.Timestamp], cmp.Less[arrow.Timestamp])
	case arrow.STRING:
		return scan(chunks, accessor[string, *array.String], cmp.Less[string])
	case arrow.LARGE_STRING:
		return scan(chunks, accessor[string, *array.LargeString], cmp.Less[string])
	}
	return position{}, position{}, false
}

func accessor[T any, A interface{ Value(int) T }](arr arrow.Array) func(int) T {
	return arr.(A).Value
}

func scan[T any](chunks []arrow.Array, value func(arrow.Array) func(int) T, less func(a, b T) bool) (lo, hi position, ok bool) {
	var minV, maxV T
	for c, arr := range chunks {
		at := value(arr)
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				continue
			}
			v := at(i)
			if !ok {
				minV, maxV = v, v
				lo, hi = position{c, i}, position{c, i}
				ok = true
				continue
			}
			if less(v, minV) {
				minV, lo = v, position{c, i}
			}
			if less(maxV, v) {
				maxV, hi = v, position{c, i}
			}
		}
	}
	return lo, hi, ok
}

// textLengths returns the longest value in bytes and whether any value
// holds a non-ASCII byte. Both offset widths are handled.
func textLengths(chunks []arrow.Array) (uint64, bool) {
	var longest uint64
	unicode := false
	observe := func(s string) {
		if n := uint64(len(s)); n > longest {
			longest = n
		}
		if !unicode && !isASCII(s) {
			unicode = true
		}
	}
	for _, arr := range chunks {
		switch a := arr.(type) {
		case *array.String:
			for i := 0; i < a.Len(); i++ {
				if a.IsValid(i) {
					observe(a.Value(i))
				}
			}
		case *array.LargeString:
			for i := 0; i < a.Len(); i++ {
				if a.IsValid(i) {
					observe(a.Value(i))
				}
			}
		}
	}
	return longest, unicode
}

// distinct estimates the number of distinct valid values.
func distinct(chunks []arrow.Array) (uint64, error) {
	sk, err := hyperloglog.NewSketch(hllPrecision, true)
	if err != nil {
		return 0, fmt.Errorf("stats: failed to create hll: %w", err)
	}
	for _, arr := range chunks {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsValid(i) {
				sk.InsertHash(xxhash.Sum64String(arr.ValueStr(i)))
			}
		}
	}
	return sk.Estimate(), nil
}

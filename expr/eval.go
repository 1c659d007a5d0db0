package expr

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// Evaluate computes e over every row of rec. The result has rec.NumRows()
// slots and must be released by the caller.
func Evaluate(ctx context.Context, e Expr, rec arrow.RecordBatch, mem memory.Allocator) (arrow.Array, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	ev := &evaluator{ctx: compute.WithAllocator(ctx, mem), rec: rec, mem: mem, n: int(rec.NumRows())}
	return ev.eval(e)
}

// Filter returns the rows of rec for which e is true. Rows where e is null
// are dropped. The result must be released by the caller.
func Filter(ctx context.Context, e Expr, rec arrow.RecordBatch, mem memory.Allocator) (arrow.RecordBatch, error) {
	return FilterProjected(ctx, e, rec, rec, mem)
}

// FilterProjected evaluates e over rec and keeps the matching rows of
// projected, which must have rec's row count. Columns of rec that e reads
// but projected omits are never taken.
func FilterProjected(ctx context.Context, e Expr, rec, projected arrow.RecordBatch, mem memory.Allocator) (arrow.RecordBatch, error) {
	if projected.NumRows() != rec.NumRows() {
		return nil, fmt.Errorf("expr: projected batch has %d rows, want %d", projected.NumRows(), rec.NumRows())
	}
	if IsLiteralBool(e, true) {
		projected.Retain()
		return projected, nil
	}

	mask, err := Evaluate(ctx, e, rec, mem)
	if err != nil {
		return nil, err
	}
	defer mask.Release()

	if mask.DataType().ID() != arrow.BOOL {
		return nil, fmt.Errorf("expr: filter %s is not boolean (got %s)", e, mask.DataType())
	}

	if mem == nil {
		mem = memory.DefaultAllocator
	}
	opts := compute.FilterOptions{NullSelection: compute.SelectionDropNulls}
	return compute.FilterRecordBatch(compute.WithAllocator(ctx, mem), projected, mask, &opts)
}

type evaluator struct {
	ctx context.Context
	rec arrow.RecordBatch
	mem memory.Allocator
	n   int
}

func (ev *evaluator) eval(e Expr) (arrow.Array, error) {
	switch n := e.(type) {
	case *FieldRef:
		idx := ev.rec.Schema().FieldIndices(n.Name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("expr: no field %q in batch", n.Name)
		}
		col := ev.rec.Column(idx[0])
		col.Retain()
		return col, nil

	case *Literal:
		if n.Value == nil {
			return nil, fmt.Errorf("expr: nil literal")
		}
		return scalar.MakeArrayFromScalar(n.Value, ev.n, ev.mem)

	case *Call:
		return ev.call(n)
	}
	return nil, fmt.Errorf("expr: unknown node %T", e)
}

func (ev *evaluator) call(c *Call) (arrow.Array, error) {
	args := make([]arrow.Array, 0, len(c.Args))
	defer func() {
		for _, a := range args {
			a.Release()
		}
	}()
	for _, a := range c.Args {
		arr, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args = append(args, arr)
	}

	switch c.Func {
	case FuncEqual, FuncNotEqual, FuncLess, FuncLessEqual, FuncGreater, FuncGreaterEqual,
		FuncAndKleene, FuncOrKleene, FuncAndNot:
		if err := arity(c, args, 2); err != nil {
			return nil, err
		}
		return ev.kernel(c.Func, args...)

	case FuncNot, FuncIsNull, FuncIsNotNull, FuncIsNaN:
		if err := arity(c, args, 1); err != nil {
			return nil, err
		}
		return ev.kernel(c.Func, args...)

	case FuncStructField:
		if err := arity(c, args, 1); err != nil {
			return nil, err
		}
		return ev.structField(args[0], c.FieldIndex)
	}
	return nil, fmt.Errorf("expr: unknown function %q", c.Func)
}

func arity(c *Call, args []arrow.Array, n int) error {
	if len(args) != n {
		return fmt.Errorf("expr: %s expects %d argument(s), got %d", c.Func, n, len(args))
	}
	return nil
}

// kernel runs an arrow compute function over array arguments.
func (ev *evaluator) kernel(fn string, args ...arrow.Array) (arrow.Array, error) {
	datums := make([]compute.Datum, len(args))
	types := make([]string, len(args))
	for i, a := range args {
		datums[i] = compute.NewDatum(a)
		types[i] = a.DataType().String()
	}
	defer func() {
		for _, d := range datums {
			d.Release()
		}
	}()

	out, err := compute.CallFunction(ev.ctx, fn, nil, datums...)
	if err != nil {
		return nil, fmt.Errorf("expr: %s(%s): %w", fn, strings.Join(types, ", "), err)
	}
	defer out.Release()

	ad, ok := out.(*compute.ArrayDatum)
	if !ok {
		return nil, fmt.Errorf("expr: %s returned %v", fn, out.Kind())
	}
	return ad.MakeArray(), nil
}

// structField returns child idx of a struct array with the parent's nulls
// merged into the child's validity.
func (ev *evaluator) structField(arr arrow.Array, idx int) (arrow.Array, error) {
	st, ok := arr.(*array.Struct)
	if !ok {
		return nil, fmt.Errorf("expr: struct_field expects struct, got %s", arr.DataType())
	}
	if idx < 0 || idx >= st.NumField() {
		return nil, fmt.Errorf("expr: struct_field index %d out of range [0,%d)", idx, st.NumField())
	}

	child := st.Field(idx)
	if st.NullN() == 0 {
		child.Retain()
		return child, nil
	}

	cd := child.Data()
	off := cd.Offset()
	n := child.Len()

	validity := memory.NewResizableBuffer(ev.mem)
	defer validity.Release()
	validity.Resize(int(bitutil.BytesForBits(int64(off + n))))
	bits := validity.Bytes()
	for i := range bits {
		bits[i] = 0
	}
	nulls := 0
	for i := 0; i < n; i++ {
		ok := st.IsValid(i) && child.IsValid(i)
		bitutil.SetBitTo(bits, off+i, ok)
		if !ok {
			nulls++
		}
	}

	buffers := make([]*memory.Buffer, len(cd.Buffers()))
	copy(buffers, cd.Buffers())
	buffers[0] = validity

	merged := array.NewData(cd.DataType(), n, buffers, cd.Children(), nulls, off)
	defer merged.Release()
	if cd.DataType().ID() == arrow.DICTIONARY {
		merged.SetDictionary(cd.Dictionary())
	}
	return array.MakeFromData(merged), nil
}

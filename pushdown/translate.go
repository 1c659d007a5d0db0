// Package pushdown turns host filter trees into expressions the Arrow
// compute layer evaluates, and decides which columns may take part.
//
// The host orders NaN above every other floating point value while Arrow
// comparisons against NaN are always false. Comparisons with a NaN constant
// are therefore rewritten (is_nan is false for nulls):
//
//	col =  NaN   is_nan(col)
//	col >= NaN   is_nan(col)
//	col <  NaN   and_not(is_not_null(col), is_nan(col))
//	col <> NaN   and_not(is_not_null(col), is_nan(col))
//	col >  NaN   false
//	col <= NaN   is_not_null(col)
//
// Arrow has no ordering kernels for booleans, so ordered comparisons on a
// boolean column become and_not over false < true. Half floats have no
// comparison kernels at all and are not translated.
package pushdown

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/convert"
	"github.com/hugr-lab/duckbridge/expr"
	"github.com/hugr-lab/duckbridge/filter"
)

// Translate converts n, a filter on column of type dt, into an expression.
//
// Untranslatable parts that are safe to drop (runtime filters, optional
// filters, non-comparison struct children) become a literal true; the host
// re-checks every filter, so widening never changes results. Anything else
// that cannot be represented returns an error and the whole filter must be
// skipped.
func Translate(n *filter.Node, column string, dt arrow.DataType) (expr.Expr, error) {
	return translate(n, expr.Field(column), dt)
}

func translate(n *filter.Node, operand expr.Expr, dt arrow.DataType) (expr.Expr, error) {
	if n == nil {
		return nil, &filter.UnsupportedError{Kind: "filter", Reason: "nil node"}
	}

	switch n.Type {
	case filter.TypeConstantComparison:
		return comparison(n.Comparison, n.Constant, operand, dt)

	case filter.TypeIsNull:
		return expr.IsNull(operand), nil

	case filter.TypeIsNotNull:
		return expr.IsNotNull(operand), nil

	case filter.TypeConjunctionAnd:
		acc := expr.Bool(true)
		for _, c := range n.Children {
			e, err := translate(c, operand, dt)
			if err != nil {
				return nil, err
			}
			acc = expr.And(acc, e)
		}
		return acc, nil

	case filter.TypeConjunctionOr:
		acc := expr.Bool(false)
		for _, c := range n.Children {
			e, err := translate(c, operand, dt)
			if err != nil {
				return nil, err
			}
			acc = expr.Or(acc, e)
		}
		return acc, nil

	case filter.TypeStructExtract:
		st, ok := dt.(*arrow.StructType)
		if !ok {
			return nil, &filter.UnsupportedError{Kind: "struct_extract", Reason: "column is " + dt.String()}
		}
		if n.ChildIndex < 0 || n.ChildIndex >= st.NumFields() {
			return nil, &filter.UnsupportedError{Kind: "struct_extract", Reason: fmt.Sprintf("field index %d out of range", n.ChildIndex)}
		}
		if n.Child == nil || n.Child.Type != filter.TypeConstantComparison {
			return expr.Bool(true), nil
		}
		field := expr.StructField(operand, n.ChildIndex)
		return comparison(n.Child.Comparison, n.Child.Constant, field, st.Field(n.ChildIndex).Type)

	case filter.TypeIn:
		acc := expr.Bool(false)
		for _, v := range n.Values {
			e, err := comparison(filter.CompareEqual, v, operand, dt)
			if err != nil {
				return nil, err
			}
			acc = expr.Or(acc, e)
		}
		return acc, nil

	case filter.TypeOptional, filter.TypeDynamic:
		return expr.Bool(true), nil
	}
	return nil, &filter.UnsupportedError{Kind: n.Type.String()}
}

var compareFuncs = map[filter.ComparisonType]string{
	filter.CompareEqual:              expr.FuncEqual,
	filter.CompareNotEqual:           expr.FuncNotEqual,
	filter.CompareLessThan:           expr.FuncLess,
	filter.CompareGreaterThan:        expr.FuncGreater,
	filter.CompareLessThanOrEqual:    expr.FuncLessEqual,
	filter.CompareGreaterThanOrEqual: expr.FuncGreaterEqual,
}

func comparison(op filter.ComparisonType, constant filter.Value, operand expr.Expr, dt arrow.DataType) (expr.Expr, error) {
	fn, ok := compareFuncs[op]
	if !ok {
		return nil, &filter.UnsupportedError{Kind: "comparison", Reason: op.String()}
	}

	if constant.IsNaN() {
		if !isFloating(dt) {
			return nil, &filter.UnsupportedError{Kind: "comparison", Reason: "NaN constant on " + dt.String()}
		}
		return nanComparison(op, operand), nil
	}

	if dt.ID() == arrow.FLOAT16 {
		return nil, &filter.UnsupportedError{Kind: "comparison", Reason: "no kernel for " + dt.String()}
	}

	sc, err := convert.ToArrowScalar(constant, dt)
	if err != nil {
		return nil, err
	}
	if dt.ID() == arrow.BOOL {
		return boolComparison(op, operand, expr.Lit(sc)), nil
	}
	return expr.Compare(fn, operand, expr.Lit(sc)), nil
}

func boolComparison(op filter.ComparisonType, col, lit expr.Expr) expr.Expr {
	switch op {
	case filter.CompareGreaterThan:
		return expr.AndNot(col, lit)
	case filter.CompareLessThan:
		return expr.AndNot(lit, col)
	case filter.CompareGreaterThanOrEqual:
		return expr.Not(expr.AndNot(lit, col))
	case filter.CompareLessThanOrEqual:
		return expr.Not(expr.AndNot(col, lit))
	}
	return expr.Compare(compareFuncs[op], col, lit)
}

func nanComparison(op filter.ComparisonType, operand expr.Expr) expr.Expr {
	switch op {
	case filter.CompareEqual, filter.CompareGreaterThanOrEqual:
		return expr.IsNaN(operand)
	case filter.CompareLessThan, filter.CompareNotEqual:
		return expr.AndNot(expr.IsNotNull(operand), expr.IsNaN(operand))
	case filter.CompareGreaterThan:
		return expr.Bool(false)
	default:
		return expr.IsNotNull(operand)
	}
}

func isFloating(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}


// Package expr is the target expression tree predicates are translated
// into: field references, literal scalars and calls to named compute
// functions. Trees evaluate to boolean masks over Arrow record batches.
package expr

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/scalar"
)

// Function names used by the translator. All of them except struct_field
// are arrow compute functions of the same name.
const (
	FuncEqual        = "equal"
	FuncNotEqual     = "not_equal"
	FuncLess         = "less"
	FuncLessEqual    = "less_equal"
	FuncGreater      = "greater"
	FuncGreaterEqual = "greater_equal"
	FuncAndKleene    = "and_kleene"
	FuncOrKleene     = "or_kleene"
	FuncAndNot       = "and_not"
	FuncNot          = "not"
	FuncIsNull       = "is_null"
	FuncIsNotNull    = "is_not_null"
	FuncIsNaN        = "is_nan"
	FuncStructField  = "struct_field"
)

// Expr is a node of the target expression tree.
type Expr interface {
	String() string
	isExpr()
}

// FieldRef references a top-level column by name.
type FieldRef struct {
	Name string
}

// Literal is a constant scalar.
type Literal struct {
	Value scalar.Scalar
}

// Call applies a named function to its arguments. FieldIndex is used only
// by struct_field.
type Call struct {
	Func       string
	Args       []Expr
	FieldIndex int
}

func (*FieldRef) isExpr() {}
func (*Literal) isExpr() {}
func (*Call) isExpr() {}

func (f *FieldRef) String() string { return f.Name }

func (l *Literal) String() string {
	if l.Value == nil || !l.Value.IsValid() {
		return "null"
	}
	return l.Value.String()
}

func (c *Call) String() string {
	var sb strings.Builder
	sb.WriteString(c.Func)
	sb.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	if c.Func == FuncStructField {
		sb.WriteString(", [")
		sb.WriteString(strconv.Itoa(c.FieldIndex))
		sb.WriteByte(']')
	}
	sb.WriteByte(')')
	return sb.String()
}

// Field returns a reference to column name.
func Field(name string) Expr { return &FieldRef{Name: name} }

// Lit wraps a scalar.
func Lit(s scalar.Scalar) Expr { return &Literal{Value: s} }

// Bool returns a boolean literal.
func Bool(b bool) Expr { return &Literal{Value: scalar.NewBooleanScalar(b)} }

// CallFn builds a call of fn.
func CallFn(fn string, args ...Expr) Expr { return &Call{Func: fn, Args: args} }

// Compare builds a binary comparison call.
func Compare(fn string, left, right Expr) Expr { return CallFn(fn, left, right) }

// And combines a and b with Kleene AND.
func And(a, b Expr) Expr { return CallFn(FuncAndKleene, a, b) }

// Or combines a and b with Kleene OR.
func Or(a, b Expr) Expr { return CallFn(FuncOrKleene, a, b) }

// AndNot is a AND NOT b with null propagation.
func AndNot(a, b Expr) Expr { return CallFn(FuncAndNot, a, b) }

// Not negates e.
func Not(e Expr) Expr { return CallFn(FuncNot, e) }

// IsNull tests e for nulls.
func IsNull(e Expr) Expr { return CallFn(FuncIsNull, e) }

// IsNotNull tests e for non-nulls.
func IsNotNull(e Expr) Expr { return CallFn(FuncIsNotNull, e) }

// IsNaN tests e for NaN. Nulls test false.
func IsNaN(e Expr) Expr { return CallFn(FuncIsNaN, e) }

// StructField extracts child idx of a struct-typed e.
func StructField(e Expr, idx int) Expr {
	return &Call{Func: FuncStructField, Args: []Expr{e}, FieldIndex: idx}
}

// IsLiteralBool reports whether e is a non-null boolean literal equal to b.
func IsLiteralBool(e Expr, b bool) bool {
	l, ok := e.(*Literal)
	if !ok || l.Value == nil || !l.Value.IsValid() {
		return false
	}
	bs, ok := l.Value.(*scalar.Boolean)
	return ok && bs.Value == b
}

// Fields returns the distinct column names e references.
func Fields(e Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *FieldRef:
			if !seen[n.Name] {
				seen[n.Name] = true
				out = append(out, n.Name)
			}
		case *Call:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}

package filter

import (
	"strconv"
	"strings"
)

// Type identifies the variant of a Node. The numeric values match DuckDB's
// TableFilterType and are used as-is on the flat wire form.
type Type uint8

const (
	TypeConstantComparison Type = 0
	TypeIsNull             Type = 1
	TypeIsNotNull          Type = 2
	TypeConjunctionOr      Type = 3
	TypeConjunctionAnd     Type = 4
	TypeStructExtract      Type = 5
	TypeOptional           Type = 6
	TypeIn                 Type = 7
	TypeDynamic            Type = 8
)

var typeNames = [...]string{
	TypeConstantComparison: "CONSTANT_COMPARISON",
	TypeIsNull:             "IS_NULL",
	TypeIsNotNull:          "IS_NOT_NULL",
	TypeConjunctionOr:      "CONJUNCTION_OR",
	TypeConjunctionAnd:     "CONJUNCTION_AND",
	TypeStructExtract:      "STRUCT_EXTRACT",
	TypeOptional:           "OPTIONAL_FILTER",
	TypeIn:                 "IN_FILTER",
	TypeDynamic:            "DYNAMIC_FILTER",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

// ParseType resolves a DuckDB filter type name. Both the serialized enum name
// and the numeric form are accepted.
func ParseType(s string) (Type, bool) {
	for i, name := range typeNames {
		if strings.EqualFold(s, name) {
			return Type(i), true
		}
	}
	// DuckDB also serializes OPTIONAL_FILTER as OPTIONAL and DYNAMIC_FILTER as DYNAMIC.
	switch strings.ToUpper(s) {
	case "OPTIONAL":
		return TypeOptional, true
	case "DYNAMIC":
		return TypeDynamic, true
	case "IN":
		return TypeIn, true
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(typeNames) {
		return Type(n), true
	}
	return 0, false
}

// ComparisonType is the operator of a constant comparison. The numeric values
// follow DuckDB's ExpressionType numbering.
type ComparisonType uint8

const (
	CompareEqual              ComparisonType = 25
	CompareNotEqual           ComparisonType = 26
	CompareLessThan           ComparisonType = 27
	CompareGreaterThan        ComparisonType = 28
	CompareLessThanOrEqual    ComparisonType = 29
	CompareGreaterThanOrEqual ComparisonType = 30
)

// Valid reports whether c is one of the six comparison operators.
func (c ComparisonType) Valid() bool {
	return c >= CompareEqual && c <= CompareGreaterThanOrEqual
}

// Symbol returns the SQL operator.
func (c ComparisonType) Symbol() string {
	switch c {
	case CompareEqual:
		return "="
	case CompareNotEqual:
		return "<>"
	case CompareLessThan:
		return "<"
	case CompareGreaterThan:
		return ">"
	case CompareLessThanOrEqual:
		return "<="
	case CompareGreaterThanOrEqual:
		return ">="
	}
	return ""
}

func (c ComparisonType) String() string {
	switch c {
	case CompareEqual:
		return "COMPARE_EQUAL"
	case CompareNotEqual:
		return "COMPARE_NOTEQUAL"
	case CompareLessThan:
		return "COMPARE_LESSTHAN"
	case CompareGreaterThan:
		return "COMPARE_GREATERTHAN"
	case CompareLessThanOrEqual:
		return "COMPARE_LESSTHANOREQUALTO"
	case CompareGreaterThanOrEqual:
		return "COMPARE_GREATERTHANOREQUALTO"
	}
	return "COMPARE_INVALID(" + strconv.Itoa(int(c)) + ")"
}

// ParseComparisonType resolves a DuckDB comparison type name or number.
func ParseComparisonType(s string) (ComparisonType, bool) {
	switch strings.ToUpper(s) {
	case "COMPARE_EQUAL", "EQUAL", "=":
		return CompareEqual, true
	case "COMPARE_NOTEQUAL", "NOT_EQUAL", "<>", "!=":
		return CompareNotEqual, true
	case "COMPARE_LESSTHAN", "LESS_THAN", "<":
		return CompareLessThan, true
	case "COMPARE_GREATERTHAN", "GREATER_THAN", ">":
		return CompareGreaterThan, true
	case "COMPARE_LESSTHANOREQUALTO", "LESS_THAN_OR_EQUAL", "<=":
		return CompareLessThanOrEqual, true
	case "COMPARE_GREATERTHANOREQUALTO", "GREATER_THAN_OR_EQUAL", ">=":
		return CompareGreaterThanOrEqual, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		c := ComparisonType(n)
		if c.Valid() {
			return c, true
		}
	}
	return 0, false
}

// Node is one host filter, a tagged variant keyed by Type. Only the fields
// that belong to the variant are meaningful:
//
//	TypeConstantComparison  Comparison, Constant
//	TypeConjunctionOr/And   Children
//	TypeStructExtract       ChildIndex, ChildName, Child
//	TypeOptional            Child
//	TypeIn                  Values
//
// IS_NULL, IS_NOT_NULL and DYNAMIC carry no payload. A Node is read-only once
// built and may be shared between scans.
type Node struct {
	Type       Type
	Comparison ComparisonType
	Constant   Value
	Children   []*Node
	ChildIndex int
	ChildName  string
	Child      *Node
	Values     []Value
}

// Compare builds a constant comparison node.
func Compare(op ComparisonType, v Value) *Node {
	return &Node{Type: TypeConstantComparison, Comparison: op, Constant: v}
}

// IsNull builds an IS NULL node.
func IsNull() *Node { return &Node{Type: TypeIsNull} }

// IsNotNull builds an IS NOT NULL node.
func IsNotNull() *Node { return &Node{Type: TypeIsNotNull} }

// And builds a conjunction that holds when every child holds.
func And(children ...*Node) *Node {
	return &Node{Type: TypeConjunctionAnd, Children: children}
}

// Or builds a conjunction that holds when any child holds.
func Or(children ...*Node) *Node {
	return &Node{Type: TypeConjunctionOr, Children: children}
}

// StructExtract applies child to field idx of a struct column.
func StructExtract(idx int, name string, child *Node) *Node {
	return &Node{Type: TypeStructExtract, ChildIndex: idx, ChildName: name, Child: child}
}

// In builds a set membership node.
func In(values ...Value) *Node {
	return &Node{Type: TypeIn, Values: values}
}

// Optional wraps a filter the host may drop without changing results.
func Optional(child *Node) *Node {
	return &Node{Type: TypeOptional, Child: child}
}

// Dynamic builds an opaque runtime filter that cannot be translated.
func Dynamic() *Node { return &Node{Type: TypeDynamic} }

// String renders the node in a compact debug form.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var sb strings.Builder
	n.writeTo(&sb)
	return sb.String()
}

func (n *Node) writeTo(sb *strings.Builder) {
	switch n.Type {
	case TypeConstantComparison:
		sb.WriteString(n.Comparison.Symbol())
		sb.WriteByte(' ')
		sb.WriteString(n.Constant.String())
	case TypeIsNull:
		sb.WriteString("IS NULL")
	case TypeIsNotNull:
		sb.WriteString("IS NOT NULL")
	case TypeConjunctionAnd, TypeConjunctionOr:
		sep := " AND "
		if n.Type == TypeConjunctionOr {
			sep = " OR "
		}
		sb.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteString(sep)
			}
			c.writeTo(sb)
		}
		sb.WriteByte(')')
	case TypeStructExtract:
		sb.WriteByte('.')
		if n.ChildName != "" {
			sb.WriteString(n.ChildName)
		} else {
			sb.WriteString(strconv.Itoa(n.ChildIndex))
		}
		sb.WriteByte(' ')
		if n.Child != nil {
			n.Child.writeTo(sb)
		}
	case TypeOptional:
		sb.WriteString("OPTIONAL(")
		if n.Child != nil {
			n.Child.writeTo(sb)
		}
		sb.WriteByte(')')
	case TypeIn:
		sb.WriteString("IN (")
		for i, v := range n.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(n.Type.String())
	}
}

// ColumnFilter binds a filter tree to a projected column index.
type ColumnFilter struct {
	Column int
	Filter *Node
}

// Set is the ordered collection of filters the host pushes into one scan.
// Filters on different columns are implicitly AND-ed.
type Set []ColumnFilter

// Columns returns the projected column indices referenced by the set.
func (s Set) Columns() []int {
	out := make([]int, 0, len(s))
	for _, cf := range s {
		out = append(out, cf.Column)
	}
	return out
}

// UnsupportedError reports a filter or value that cannot be represented by
// the target. It is scoped to a single filter; callers skip that filter and
// keep going.
type UnsupportedError struct {
	Kind   string
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return "filter: unsupported " + e.Kind
	}
	return "filter: unsupported " + e.Kind + ": " + e.Reason
}

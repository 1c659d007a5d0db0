package flatir

import (
	"fmt"

	"github.com/hugr-lab/duckbridge/filter"
)

// Node is the flat form of one filter. FilterType and ComparisonType use
// the host's numbering. The fields used by each filter type mirror
// filter.Node:
//
//	CONSTANT_COMPARISON  ComparisonType, Value
//	CONJUNCTION_OR/AND   Children
//	STRUCT_EXTRACT       StructChildIndex, StructChildName, StructChild
//	OPTIONAL_FILTER      StructChild (the wrapped filter, may be nil)
//	IN_FILTER            InValues
type Node struct {
	FilterType       filter.Type           `msgpack:"ft"`
	ComparisonType   filter.ComparisonType `msgpack:"ct,omitempty"`
	Value            Value                 `msgpack:"v"`
	Children         []Node                `msgpack:"c,omitempty"`
	StructChildIndex int                   `msgpack:"si,omitempty"`
	StructChildName  string                `msgpack:"sn,omitempty"`
	StructChild      *Node                 `msgpack:"sc,omitempty"`
	InValues         []Value               `msgpack:"in,omitempty"`
}

// ColumnFilter is one serialized filter bound to a holder column.
type ColumnFilter struct {
	// Column is the column index in the holder's schema.
	Column int `msgpack:"col"`
	// Name is the column name in the holder's schema.
	Name   string `msgpack:"name"`
	Filter Node   `msgpack:"f"`
}

// ProduceParams is what a holder receives for one produce call: the columns
// to emit, in order, and the filters it must apply.
type ProduceParams struct {
	ProjectedColumns []string       `msgpack:"cols"`
	Filters          []ColumnFilter `msgpack:"filters"`
	// JSONFilters is DuckDB's serialized TableFilterSet, as sent by clients
	// that do not build flat filters. Its keys index the same schema as
	// Filters.
	JSONFilters string `msgpack:"json_filters,omitempty"`
}

// Empty reports whether the params request the full schema with no filters.
func (p *ProduceParams) Empty() bool {
	return p == nil || (len(p.ProjectedColumns) == 0 && len(p.Filters) == 0 && p.JSONFilters == "")
}

// Serialize converts a host filter tree into arena-owned flat nodes. Any
// unconvertible constant fails the whole tree.
func Serialize(a *Arena, n *filter.Node) (*Node, error) {
	out := a.Node()
	if err := serializeInto(a, n, out); err != nil {
		return nil, err
	}
	return out, nil
}

func serializeInto(a *Arena, n *filter.Node, out *Node) error {
	if n == nil {
		return &filter.UnsupportedError{Kind: "filter", Reason: "nil node"}
	}
	out.FilterType = n.Type

	switch n.Type {
	case filter.TypeConstantComparison:
		if !n.Comparison.Valid() {
			return &filter.UnsupportedError{Kind: "comparison", Reason: n.Comparison.String()}
		}
		v, err := FromHost(n.Constant, a)
		if err != nil {
			return err
		}
		out.ComparisonType = n.Comparison
		out.Value = v

	case filter.TypeIsNull, filter.TypeIsNotNull, filter.TypeDynamic:

	case filter.TypeConjunctionAnd, filter.TypeConjunctionOr:
		out.Children = a.Nodes(len(n.Children))
		for i, c := range n.Children {
			if err := serializeInto(a, c, &out.Children[i]); err != nil {
				return err
			}
		}

	case filter.TypeStructExtract:
		out.StructChildIndex = n.ChildIndex
		out.StructChildName = n.ChildName
		out.StructChild = a.Node()
		if err := serializeInto(a, n.Child, out.StructChild); err != nil {
			return err
		}

	case filter.TypeOptional:
		if n.Child != nil {
			out.StructChild = a.Node()
			if err := serializeInto(a, n.Child, out.StructChild); err != nil {
				return err
			}
		}

	case filter.TypeIn:
		out.InValues = a.Values(len(n.Values))
		for i, v := range n.Values {
			fv, err := FromHost(v, a)
			if err != nil {
				return err
			}
			out.InValues[i] = fv
		}

	default:
		return &filter.UnsupportedError{Kind: n.Type.String()}
	}
	return nil
}

// Deserialize rebuilds the host filter tree from its flat form.
func Deserialize(n *Node) (*filter.Node, error) {
	if n == nil {
		return nil, fmt.Errorf("flatir: nil node")
	}

	switch n.FilterType {
	case filter.TypeConstantComparison:
		if !n.ComparisonType.Valid() {
			return nil, fmt.Errorf("flatir: invalid comparison type %d", n.ComparisonType)
		}
		v, err := ToHost(n.Value)
		if err != nil {
			return nil, err
		}
		return filter.Compare(n.ComparisonType, v), nil

	case filter.TypeIsNull:
		return filter.IsNull(), nil

	case filter.TypeIsNotNull:
		return filter.IsNotNull(), nil

	case filter.TypeDynamic:
		return filter.Dynamic(), nil

	case filter.TypeConjunctionAnd, filter.TypeConjunctionOr:
		children := make([]*filter.Node, len(n.Children))
		for i := range n.Children {
			c, err := Deserialize(&n.Children[i])
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		return &filter.Node{Type: n.FilterType, Children: children}, nil

	case filter.TypeStructExtract:
		child, err := Deserialize(n.StructChild)
		if err != nil {
			return nil, fmt.Errorf("flatir: struct child: %w", err)
		}
		return filter.StructExtract(n.StructChildIndex, n.StructChildName, child), nil

	case filter.TypeOptional:
		if n.StructChild == nil {
			return filter.Optional(nil), nil
		}
		child, err := Deserialize(n.StructChild)
		if err != nil {
			return nil, err
		}
		return filter.Optional(child), nil

	case filter.TypeIn:
		values := make([]filter.Value, len(n.InValues))
		for i, fv := range n.InValues {
			v, err := ToHost(fv)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return filter.In(values...), nil
	}
	return nil, fmt.Errorf("flatir: unknown filter type %d", n.FilterType)
}

// Set rebuilds the host filter set from serialized column filters, keyed by
// holder column index. Filters parsed from JSONFilters follow the flat ones.
func (p *ProduceParams) Set() (filter.Set, error) {
	if p == nil {
		return nil, nil
	}
	set := make(filter.Set, 0, len(p.Filters))
	for i := range p.Filters {
		n, err := Deserialize(&p.Filters[i].Filter)
		if err != nil {
			return nil, fmt.Errorf("flatir: filter on %q: %w", p.Filters[i].Name, err)
		}
		set = append(set, filter.ColumnFilter{Column: p.Filters[i].Column, Filter: n})
	}
	if p.JSONFilters != "" {
		parsed, err := filter.ParseSet([]byte(p.JSONFilters))
		if err != nil {
			return nil, fmt.Errorf("flatir: json filters: %w", err)
		}
		set = append(set, parsed...)
	}
	return set, nil
}

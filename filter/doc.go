// Package filter models the filters a DuckDB host pushes into a table scan.
//
// A filter is a Node, a tagged variant keyed by Type. Filters are grouped in
// a Set where each entry binds a filter tree to a projected column index;
// entries on different columns are implicitly AND-ed.
//
// # Building filters
//
//	set := filter.Set{
//	    {Column: 0, Filter: filter.Compare(filter.CompareGreaterThan, filter.IntValue(filter.TypeIDInteger, 10))},
//	    {Column: 1, Filter: filter.Or(filter.IsNull(), filter.Compare(filter.CompareEqual, filter.VarcharValue("x")))},
//	}
//
// # Parsing
//
// ParseSet decodes the JSON form of DuckDB's serialized TableFilterSet:
//
//	set, err := filter.ParseSet(data)
//
// # SQL Encoding
//
// SQLEncoder renders a Set as a DuckDB boolean condition. Filters that have
// no SQL rendering are returned to the caller untouched:
//
//	enc := filter.NewSQLEncoder(nil)
//	where, rest := enc.EncodeSet(set, []string{"id", "name"})
//
// Within one filter tree the encoder never widens the predicate except for
// DYNAMIC and OPTIONAL filters, which the host treats as hints:
//   - AND drops always-true children
//   - OR with an always-true child is always true
//   - an unencodable child fails the whole tree
//
// # Values
//
// Value carries a DuckDB logical type and the canonical Go form of the
// constant. Decimals keep their exact text so conversions never go through
// binary floating point.
package filter

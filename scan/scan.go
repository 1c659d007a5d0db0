// Package scan exposes Arrow data sources to the host as table functions.
//
// A Factory is created once at bind time and hands the host a Capabilities
// table: schema, cardinality, produce and statistics. Two source shapes are
// supported. TableFactory wraps a materialized arrow.Table and applies
// pushed filters itself through the pushdown translator. HolderFactory
// wraps an opaque Holder and delegates filtering to it through the flat
// filter IR.
//
// Everything a factory computes at bind (schema, cardinality, statistics)
// is immutable afterwards, so Produce may be called concurrently.
package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/filter"
	"github.com/hugr-lab/duckbridge/stats"
)

var (
	// ErrNilCapability is returned when a factory, its source or one of its
	// capabilities is missing.
	ErrNilCapability = errors.New("scan: nil capability")
	// ErrNoColumns is returned for a source whose schema has no columns.
	ErrNoColumns = errors.New("scan: schema has no columns")
	// ErrUnknownColumn is returned when a projection names a column the
	// source does not have.
	ErrUnknownColumn = errors.New("scan: unknown column")
	// ErrClosed is returned by operations on a closed factory or stream.
	ErrClosed = errors.New("scan: closed")
)

// BindError reports why a source could not be bound.
type BindError struct {
	Source string
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("scan: bind %s: %v", e.Source, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Params is one scan request.
type Params struct {
	// Columns lists the columns to emit, in order. Empty means all.
	Columns []string
	// FilterToColumn maps filter column indices to schema indices. Indices
	// without an entry are schema indices already.
	FilterToColumn map[int]int
	// Filters are implicitly AND-ed. The host re-checks every filter, so a
	// filter that is not pushed only costs performance.
	Filters filter.Set
}

// Capabilities is the function table the host calls.
type Capabilities struct {
	GetSchema func() *arrow.Schema
	// GetCardinality reports the row count, or false when unknown.
	GetCardinality func() (int64, bool)
	// Produce starts an independent single-pass stream.
	Produce func(ctx context.Context, p Params) (*Stream, error)
	// GetStatistics returns nil when the column's statistics are unknown.
	GetStatistics func(ctx context.Context, column int) (*stats.BaseStatistics, error)
}

// Factory is a bound source.
type Factory interface {
	Capabilities() Capabilities
	// Close releases everything the factory holds. Streams already handed
	// out stay valid.
	Close() error
}

// Bind validates f and returns its capabilities.
func Bind(f Factory) (Capabilities, error) {
	if f == nil {
		return Capabilities{}, &BindError{Source: "factory", Err: ErrNilCapability}
	}
	caps := f.Capabilities()
	for name, missing := range map[string]bool{
		"get_schema":      caps.GetSchema == nil,
		"get_cardinality": caps.GetCardinality == nil,
		"produce":         caps.Produce == nil,
		"get_statistics":  caps.GetStatistics == nil,
	} {
		if missing {
			return Capabilities{}, &BindError{Source: name, Err: ErrNilCapability}
		}
	}
	if err := checkSchema(caps.GetSchema()); err != nil {
		return Capabilities{}, &BindError{Source: "schema", Err: err}
	}
	return caps, nil
}

func checkSchema(schema *arrow.Schema) error {
	if schema == nil {
		return ErrNilCapability
	}
	if schema.NumFields() == 0 {
		return ErrNoColumns
	}
	return nil
}

// projection resolves column names to schema indices. Empty means all.
func projection(schema *arrow.Schema, columns []string) ([]int, error) {
	if len(columns) == 0 {
		out := make([]int, schema.NumFields())
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, len(columns))
	for i, name := range columns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		out[i] = idx[0]
	}
	return out, nil
}

func projectSchema(schema *arrow.Schema, cols []int) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = schema.Field(c)
	}
	md := schema.Metadata()
	return arrow.NewSchema(fields, &md)
}

// Package stats produces per-column statistics for the host planner,
// either derived from a materialized Arrow table or ingested from a
// precomputed summary supplied by the caller.
//
// A nil *Column means "unknown". Callers must treat it as the absence of
// statistics, never as an error.
package stats

import (
	"unicode/utf8"

	"github.com/hugr-lab/duckbridge/filter"
)

// Options controls statistics computation. It replaces process-wide
// toggles and is fixed for the lifetime of a scan factory.
type Options struct {
	// ComputeMinMax enables statistics at all. When false every request
	// reports unknown.
	ComputeMinMax bool
	// ComputeDistinctCount additionally estimates the number of distinct
	// values. It needs a full pass with hashing and is off by default.
	ComputeDistinctCount bool
}

// DefaultOptions returns statistics enabled without distinct counts.
func DefaultOptions() Options {
	return Options{ComputeMinMax: true}
}

// Validity classifies what a column may contain.
type Validity uint8

const (
	// MaybeNull columns can hold both null and valid values.
	MaybeNull Validity = iota
	// NoNulls columns cannot contain null.
	NoNulls
	// NoValid columns contain only nulls.
	NoValid
)

func (v Validity) String() string {
	switch v {
	case NoNulls:
		return "cannot contain null"
	case NoValid:
		return "cannot contain a valid value"
	}
	return "may contain either"
}

// ClassifyNulls maps counts to a Validity.
func ClassifyNulls(nullCount, rowCount int64) Validity {
	switch {
	case nullCount == 0:
		return NoNulls
	case nullCount == rowCount:
		return NoValid
	default:
		return MaybeNull
	}
}

// Column holds the statistics of one column. It is write-once: built by
// Derive or Ingest and never modified afterwards.
type Column struct {
	Type      filter.LogicalType
	RowCount  int64
	NullCount int64

	// Min and Max are nil when unknown, for example when the column holds
	// no valid value or contains NaN.
	Min, Max *filter.Value
	// HasNaN reports a floating column with at least one NaN. Min and Max
	// are withheld then.
	HasNaN bool

	DistinctCount *uint64

	// MaxStringLength is the longest encoded value in bytes; text only.
	MaxStringLength *uint64
	ContainsUnicode bool
}

// Validity classifies the column's nulls.
func (c *Column) Validity() Validity {
	return ClassifyNulls(c.NullCount, c.RowCount)
}

// MaxStringPrefix is how many bytes of a text min or max the host keeps.
const MaxStringPrefix = 8

// BaseStatistics is the host's statistics object for one column.
type BaseStatistics struct {
	Type       filter.LogicalType
	HasNull    bool
	HasNotNull bool

	// Min and Max are typed host values. Text bounds are truncated to
	// MaxStringPrefix bytes.
	Min, Max *filter.Value

	DistinctCount   *uint64
	MaxStringLength *uint64
	ContainsUnicode bool
}

// Validity classifies the statistics' nulls.
func (b *BaseStatistics) Validity() Validity {
	switch {
	case !b.HasNull:
		return NoNulls
	case !b.HasNotNull:
		return NoValid
	}
	return MaybeNull
}

// ToBase adapts c into the host statistics object. It returns nil for nil.
func ToBase(c *Column) *BaseStatistics {
	if c == nil {
		return nil
	}

	b := &BaseStatistics{
		Type:            c.Type,
		DistinctCount:   c.DistinctCount,
		MaxStringLength: c.MaxStringLength,
		ContainsUnicode: c.ContainsUnicode,
	}
	switch c.Validity() {
	case NoNulls:
		b.HasNotNull = true
	case NoValid:
		b.HasNull = true
	default:
		b.HasNull, b.HasNotNull = true, true
	}

	b.Min, b.Max = c.Min, c.Max
	if c.Type.ID.IsString() {
		b.Min = prefix(c.Min)
		b.Max = prefix(c.Max)
		if c.Min != nil && hasUnicode(c.Min) || c.Max != nil && hasUnicode(c.Max) {
			b.ContainsUnicode = true
		}
	}
	return b
}

func prefix(v *filter.Value) *filter.Value {
	if v == nil || v.IsNull {
		return v
	}
	s, ok := v.Data.(string)
	if !ok || len(s) <= MaxStringPrefix {
		return v
	}
	out := *v
	out.Data = s[:MaxStringPrefix]
	return &out
}

func hasUnicode(v *filter.Value) bool {
	s, _ := v.Data.(string)
	return !isASCII(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

package pushdown

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/convert"
)

// Mode selects how a Gate treats types outside the built-in family list.
type Mode uint8

const (
	// Strict admits only the families the translator can evaluate itself.
	Strict Mode = iota
	// Permissive also admits whatever the holder claims to support. Used
	// when the target applies delegated filters on its own.
	Permissive
)

func (m Mode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "strict"
}

// MaxDecimalPrecision is the widest decimal that may be pushed down.
const MaxDecimalPrecision = 38

// Reasons a column is excluded from pushdown.
const (
	ReasonViewEncoding = "view encoding"
	ReasonComposite    = "composite type"
	ReasonDecimalWidth = "decimal precision above 38"
	ReasonDictionary   = "dictionary encoding"
	ReasonType         = "unsupported type"
)

// Gate decides per column whether filters on it may be pushed down.
//
// Exclusions are applied in a fixed order, identical in both modes:
// view-encoded text and binary, composite types and decimals wider than
// 38 digits are always rejected. Only then does a Permissive gate consult
// HolderSupports, and finally the family list applies.
type Gate struct {
	Mode Mode
	// HolderSupports reports types the holder claims it can filter. Only
	// consulted in Permissive mode; nil admits every remaining type.
	HolderSupports func(arrow.DataType) bool
}

// Eligible reports whether dt may participate in pushdown.
func (g Gate) Eligible(dt arrow.DataType) bool { return g.Reason(dt) == "" }

// Reason returns why dt is excluded, or "" when it is eligible.
func (g Gate) Reason(dt arrow.DataType) string {
	if dt == nil {
		return ReasonType
	}
	if convert.IsViewEncoded(dt) {
		return ReasonViewEncoding
	}
	if isComposite(dt) {
		return ReasonComposite
	}
	if p, ok := decimalPrecision(dt); ok && p > MaxDecimalPrecision {
		return ReasonDecimalWidth
	}

	if g.Mode == Permissive {
		if g.HolderSupports == nil || g.HolderSupports(dt) {
			return ""
		}
	}

	if dt.ID() == arrow.DICTIONARY {
		return ReasonDictionary
	}
	if !inFamilyList(dt) {
		return ReasonType
	}
	return ""
}

func isComposite(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.STRUCT, arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST,
		arrow.LIST_VIEW, arrow.LARGE_LIST_VIEW, arrow.MAP,
		arrow.SPARSE_UNION, arrow.DENSE_UNION, arrow.RUN_END_ENCODED:
		return true
	case arrow.DICTIONARY:
		return isComposite(dt.(*arrow.DictionaryType).ValueType)
	}
	return false
}

func decimalPrecision(dt arrow.DataType) (int32, bool) {
	switch t := dt.(type) {
	case *arrow.Decimal128Type:
		return t.Precision, true
	case *arrow.Decimal256Type:
		return t.Precision, true
	}
	return 0, false
}

func inFamilyList(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.DATE32, arrow.DATE64, arrow.TIME32, arrow.TIME64, arrow.TIMESTAMP,
		arrow.DECIMAL128, arrow.DECIMAL256,
		arrow.STRING, arrow.LARGE_STRING,
		arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return true
	}
	return false
}

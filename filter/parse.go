package filter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseSet parses a serialized DuckDB TableFilterSet into a Set.
//
// The accepted document is the JSON form of DuckDB's serializer:
//
//	{"filters": [{"key": 0, "value": {"filter_type": "CONSTANT_COMPARISON", ...}}]}
//
// Enum fields may be given either by name or by number. Error conditions:
//   - Invalid JSON syntax
//   - Unknown filter or comparison type
//   - Malformed constant values
func ParseSet(data []byte) (Set, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var raw rawFilterSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("filter: invalid JSON: %w", err)
	}

	set := make(Set, 0, len(raw.Filters))
	for i, entry := range raw.Filters {
		node, err := ParseNode(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("filter: error parsing filter %d: %w", i, err)
		}
		set = append(set, ColumnFilter{Column: entry.Key, Filter: node})
	}
	return set, nil
}

// rawFilterSet is the intermediate structure for JSON parsing.
type rawFilterSet struct {
	Filters []struct {
		Key   int             `json:"key"`
		Value json.RawMessage `json:"value"`
	} `json:"filters"`
}

// rawFilter is used for two-phase parsing: the filter type is resolved first
// and then only the fields of that variant are read.
type rawFilter struct {
	FilterType     json.RawMessage   `json:"filter_type"`
	ComparisonType json.RawMessage   `json:"comparison_type"`
	Constant       json.RawMessage   `json:"constant"`
	ChildFilters   []json.RawMessage `json:"child_filters"`
	ChildIdx       int               `json:"child_idx"`
	ChildName      string            `json:"child_name"`
	ChildFilter    json.RawMessage   `json:"child_filter"`
	Values         []json.RawMessage `json:"values"`
}

// ParseNode parses a single serialized TableFilter.
func ParseNode(data json.RawMessage) (*Node, error) {
	var raw rawFilter
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	ft, ok := ParseType(enumText(raw.FilterType))
	if !ok {
		return nil, fmt.Errorf("unknown filter_type %s", string(raw.FilterType))
	}

	switch ft {
	case TypeConstantComparison:
		op, ok := ParseComparisonType(enumText(raw.ComparisonType))
		if !ok {
			return nil, fmt.Errorf("unknown comparison_type %s", string(raw.ComparisonType))
		}
		v, err := parseValue(raw.Constant)
		if err != nil {
			return nil, fmt.Errorf("invalid constant: %w", err)
		}
		return Compare(op, v), nil

	case TypeIsNull:
		return IsNull(), nil

	case TypeIsNotNull:
		return IsNotNull(), nil

	case TypeConjunctionAnd, TypeConjunctionOr:
		children := make([]*Node, 0, len(raw.ChildFilters))
		for i, c := range raw.ChildFilters {
			child, err := ParseNode(c)
			if err != nil {
				return nil, fmt.Errorf("invalid child %d: %w", i, err)
			}
			children = append(children, child)
		}
		return &Node{Type: ft, Children: children}, nil

	case TypeStructExtract:
		child, err := ParseNode(raw.ChildFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid struct child filter: %w", err)
		}
		return StructExtract(raw.ChildIdx, raw.ChildName, child), nil

	case TypeOptional:
		if len(raw.ChildFilter) == 0 || string(raw.ChildFilter) == "null" {
			return Optional(nil), nil
		}
		child, err := ParseNode(raw.ChildFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid optional child filter: %w", err)
		}
		return Optional(child), nil

	case TypeIn:
		values := make([]Value, 0, len(raw.Values))
		for i, rv := range raw.Values {
			v, err := parseValue(rv)
			if err != nil {
				return nil, fmt.Errorf("invalid IN value %d: %w", i, err)
			}
			values = append(values, v)
		}
		return In(values...), nil

	default:
		return Dynamic(), nil
	}
}

// enumText returns a JSON enum field as text whether it was written as a
// string or a number.
func enumText(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(data))
}

func parseSpecialFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan", "-nan":
		return math.NaN(), nil
	case "inf", "infinity", "+inf":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseLogicalType parses a LogicalType from JSON.
func parseLogicalType(data json.RawMessage) (LogicalType, error) {
	if len(data) == 0 || string(data) == "null" {
		return LogicalType{}, nil
	}

	var raw struct {
		ID       string          `json:"id"`
		TypeInfo json.RawMessage `json:"type_info"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogicalType{}, fmt.Errorf("invalid logical type: %w", err)
	}

	// Normalize the type ID to handle DuckDB aliases and full SQL names
	lt := LogicalType{
		ID: LogicalTypeID(raw.ID).Normalize(),
	}

	if len(raw.TypeInfo) > 0 && string(raw.TypeInfo) != "null" {
		typeInfo, err := parseExtraTypeInfo(raw.TypeInfo, lt.ID)
		if err != nil {
			return LogicalType{}, fmt.Errorf("invalid type info: %w", err)
		}
		lt.TypeInfo = typeInfo
	}

	return lt, nil
}

// parseExtraTypeInfo parses ExtraTypeInfo based on the logical type.
func parseExtraTypeInfo(data json.RawMessage, _ LogicalTypeID) (ExtraTypeInfo, error) {
	// First, determine the type_info type
	var typeCheck struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typeCheck); err != nil {
		return nil, err
	}

	switch typeCheck.Type {
	case "DECIMAL_TYPE_INFO":
		var info DecimalTypeInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, err
		}
		return &info, nil

	case "LIST_TYPE_INFO":
		var raw struct {
			Type      string          `json:"type"`
			Alias     string          `json:"alias"`
			ChildType json.RawMessage `json:"child_type"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		childType, err := parseLogicalType(raw.ChildType)
		if err != nil {
			return nil, err
		}
		return &ListTypeInfo{
			Type:      raw.Type,
			Alias:     raw.Alias,
			ChildType: childType,
		}, nil

	case "STRUCT_TYPE_INFO":
		var raw struct {
			Type       string `json:"type"`
			Alias      string `json:"alias"`
			ChildTypes []struct {
				First  string          `json:"first"`
				Second json.RawMessage `json:"second"`
			} `json:"child_types"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		childTypes := make([]StructField, 0, len(raw.ChildTypes))
		for _, ct := range raw.ChildTypes {
			childType, err := parseLogicalType(ct.Second)
			if err != nil {
				return nil, err
			}
			childTypes = append(childTypes, StructField{
				Name: ct.First,
				Type: childType,
			})
		}
		return &StructTypeInfo{
			Type:       raw.Type,
			Alias:      raw.Alias,
			ChildTypes: childTypes,
		}, nil

	case "ARRAY_TYPE_INFO":
		var raw struct {
			Type      string          `json:"type"`
			Alias     string          `json:"alias"`
			ChildType json.RawMessage `json:"child_type"`
			Size      int             `json:"size"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		childType, err := parseLogicalType(raw.ChildType)
		if err != nil {
			return nil, err
		}
		return &ArrayTypeInfo{
			Type:      raw.Type,
			Alias:     raw.Alias,
			ChildType: childType,
			Size:      raw.Size,
		}, nil

	case "ENUM_TYPE_INFO":
		var info EnumTypeInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, err
		}
		return &info, nil

	default:
		// Unknown type info, return nil (not an error)
		return nil, nil
	}
}

// parseValue parses a Value from JSON.
func parseValue(data json.RawMessage) (Value, error) {
	if len(data) == 0 || string(data) == "null" {
		return Value{IsNull: true}, nil
	}

	var raw struct {
		Type   json.RawMessage `json:"type"`
		IsNull bool            `json:"is_null"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("invalid value: %w", err)
	}

	logicalType, err := parseLogicalType(raw.Type)
	if err != nil {
		return Value{}, fmt.Errorf("invalid value type: %w", err)
	}

	v := Value{
		Type:   logicalType,
		IsNull: raw.IsNull,
	}

	if raw.IsNull || len(raw.Value) == 0 || string(raw.Value) == "null" {
		return v, nil
	}

	// Parse the value based on type
	v.Data, err = parseValueData(raw.Value, logicalType)
	if err != nil {
		return Value{}, fmt.Errorf("invalid value data: %w", err)
	}

	return v, nil
}

// parseValueData parses the actual value data based on the logical type.
func parseValueData(data json.RawMessage, lt LogicalType) (any, error) {
	switch lt.ID {
	case TypeIDBoolean:
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case TypeIDTinyInt, TypeIDSmallInt, TypeIDInteger, TypeIDBigInt:
		var v int64
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case TypeIDUTinyInt, TypeIDUSmallInt, TypeIDUInteger, TypeIDUBigInt:
		var v uint64
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case TypeIDHugeInt:
		var v HugeInt
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case TypeIDUHugeInt:
		var v UHugeInt
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case TypeIDFloat, TypeIDDouble:
		// JSON has no NaN or infinity literals; DuckDB writes them as strings.
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return parseSpecialFloat(s)
		}
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case TypeIDDecimal:
		// Decimal can be string or number; both are kept as exact text.
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return s, nil
		}
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return n.String(), nil

	case TypeIDVarchar, TypeIDChar:
		// Check for base64-encoded string
		var base64Str Base64String
		if err := json.Unmarshal(data, &base64Str); err == nil && base64Str.Base64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(base64Str.Base64)
			if err != nil {
				return nil, fmt.Errorf("invalid base64: %w", err)
			}
			return string(decoded), nil
		}
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil

	case TypeIDBlob:
		// Blob can be base64-encoded
		var base64Str Base64String
		if err := json.Unmarshal(data, &base64Str); err == nil && base64Str.Base64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(base64Str.Base64)
			if err != nil {
				return nil, fmt.Errorf("invalid base64: %w", err)
			}
			return decoded, nil
		}
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil

	case TypeIDDate, TypeIDTime, TypeIDTimeTZ,
		TypeIDTimestamp, TypeIDTimestampTZ, TypeIDTimestampMs, TypeIDTimestampNs, TypeIDTimestampSec:
		// Temporal types are integers
		var v int64
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil

	case TypeIDUUID:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil

	default:
		// For unknown types, try to parse as generic JSON
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

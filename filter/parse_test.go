package filter

import (
	"math"
	"testing"
)

func TestParseSetEmpty(t *testing.T) {
	set, err := ParseSet(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected 0 filters, got %d", len(set))
	}

	set, err = ParseSet([]byte(`{"filters": []}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected 0 filters, got %d", len(set))
	}
}

func TestParseSetConstantComparison(t *testing.T) {
	// WHERE id > 42
	json := []byte(`{
		"filters": [
			{
				"key": 1,
				"value": {
					"filter_type": "CONSTANT_COMPARISON",
					"comparison_type": "COMPARE_GREATERTHAN",
					"constant": {
						"type": {"id": "INTEGER", "type_info": null},
						"is_null": false,
						"value": 42
					}
				}
			}
		]
	}`)

	set, err := ParseSet(json)
	if err != nil {
		t.Fatalf("ParseSet failed: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(set))
	}
	if set[0].Column != 1 {
		t.Errorf("expected column 1, got %d", set[0].Column)
	}

	n := set[0].Filter
	if n.Type != TypeConstantComparison {
		t.Fatalf("expected CONSTANT_COMPARISON, got %s", n.Type)
	}
	if n.Comparison != CompareGreaterThan {
		t.Errorf("expected COMPARE_GREATERTHAN, got %s", n.Comparison)
	}
	if n.Constant.Type.ID != TypeIDInteger {
		t.Errorf("expected INTEGER constant, got %s", n.Constant.Type.ID)
	}
	if v, ok := n.Constant.Int64(); !ok || v != 42 {
		t.Errorf("expected 42, got %v", n.Constant.Data)
	}
}

func TestParseSetNumericEnums(t *testing.T) {
	json := []byte(`{"filters": [{"key": 0, "value": {
		"filter_type": 0,
		"comparison_type": 29,
		"constant": {"type": {"id": "DOUBLE"}, "is_null": false, "value": 1.5}
	}}]}`)

	set, err := ParseSet(json)
	if err != nil {
		t.Fatalf("ParseSet failed: %v", err)
	}
	n := set[0].Filter
	if n.Type != TypeConstantComparison || n.Comparison != CompareLessThanOrEqual {
		t.Fatalf("unexpected node %s", n)
	}
	if f, ok := n.Constant.Float64(); !ok || f != 1.5 {
		t.Errorf("expected 1.5, got %v", n.Constant.Data)
	}
}

func TestParseSetNaNConstant(t *testing.T) {
	json := []byte(`{"filters": [{"key": 0, "value": {
		"filter_type": "CONSTANT_COMPARISON",
		"comparison_type": "COMPARE_EQUAL",
		"constant": {"type": {"id": "DOUBLE"}, "is_null": false, "value": "nan"}
	}}]}`)

	set, err := ParseSet(json)
	if err != nil {
		t.Fatalf("ParseSet failed: %v", err)
	}
	if !set[0].Filter.Constant.IsNaN() {
		t.Errorf("expected NaN constant, got %v", set[0].Filter.Constant.Data)
	}
}

func TestParseSetNested(t *testing.T) {
	// s.a >= 1 AND (x IS NULL OR x = 'abc')
	json := []byte(`{"filters": [
		{"key": 0, "value": {
			"filter_type": "STRUCT_EXTRACT",
			"child_idx": 0,
			"child_name": "a",
			"child_filter": {
				"filter_type": "CONSTANT_COMPARISON",
				"comparison_type": "COMPARE_GREATERTHANOREQUALTO",
				"constant": {"type": {"id": "BIGINT"}, "is_null": false, "value": 1}
			}
		}},
		{"key": 2, "value": {
			"filter_type": "CONJUNCTION_OR",
			"child_filters": [
				{"filter_type": "IS_NULL"},
				{
					"filter_type": "CONSTANT_COMPARISON",
					"comparison_type": "COMPARE_EQUAL",
					"constant": {"type": {"id": "VARCHAR"}, "is_null": false, "value": "abc"}
				}
			]
		}},
		{"key": 3, "value": {"filter_type": "DYNAMIC_FILTER"}},
		{"key": 4, "value": {
			"filter_type": "IN_FILTER",
			"values": [
				{"type": {"id": "INTEGER"}, "is_null": false, "value": 1},
				{"type": {"id": "INTEGER"}, "is_null": false, "value": 2}
			]
		}}
	]}`)

	set, err := ParseSet(json)
	if err != nil {
		t.Fatalf("ParseSet failed: %v", err)
	}
	if len(set) != 4 {
		t.Fatalf("expected 4 filters, got %d", len(set))
	}

	se := set[0].Filter
	if se.Type != TypeStructExtract || se.ChildName != "a" || se.Child == nil {
		t.Fatalf("unexpected struct extract %s", se)
	}
	if se.Child.Comparison != CompareGreaterThanOrEqual {
		t.Errorf("unexpected struct child comparison %s", se.Child.Comparison)
	}

	or := set[1].Filter
	if or.Type != TypeConjunctionOr || len(or.Children) != 2 {
		t.Fatalf("unexpected OR %s", or)
	}
	if or.Children[0].Type != TypeIsNull {
		t.Errorf("expected IS_NULL child, got %s", or.Children[0].Type)
	}
	if s, _ := or.Children[1].Constant.Data.(string); s != "abc" {
		t.Errorf("expected 'abc', got %v", or.Children[1].Constant.Data)
	}

	if set[2].Filter.Type != TypeDynamic {
		t.Errorf("expected DYNAMIC_FILTER, got %s", set[2].Filter.Type)
	}
	if in := set[3].Filter; in.Type != TypeIn || len(in.Values) != 2 {
		t.Errorf("unexpected IN filter %s", in)
	}
}

func TestParseSetDecimalAndBlob(t *testing.T) {
	json := []byte(`{"filters": [
		{"key": 0, "value": {
			"filter_type": "CONSTANT_COMPARISON",
			"comparison_type": "COMPARE_EQUAL",
			"constant": {
				"type": {"id": "DECIMAL", "type_info": {"type": "DECIMAL_TYPE_INFO", "alias": "", "width": 10, "scale": 2}},
				"is_null": false,
				"value": "123.45"
			}
		}},
		{"key": 1, "value": {
			"filter_type": "CONSTANT_COMPARISON",
			"comparison_type": "COMPARE_EQUAL",
			"constant": {"type": {"id": "BLOB"}, "is_null": false, "value": {"base64": "AQID"}}
		}}
	]}`)

	set, err := ParseSet(json)
	if err != nil {
		t.Fatalf("ParseSet failed: %v", err)
	}

	dec := set[0].Filter.Constant
	w, s, ok := dec.Type.Decimal()
	if !ok || w != 10 || s != 2 {
		t.Errorf("expected DECIMAL(10,2), got %s", dec.Type)
	}
	if text, _ := dec.Text(); text != "123.45" {
		t.Errorf("expected 123.45, got %q", text)
	}

	blob, ok := set[1].Filter.Constant.Bytes()
	if !ok || len(blob) != 3 || blob[0] != 1 || blob[2] != 3 {
		t.Errorf("unexpected blob %v", set[1].Filter.Constant.Data)
	}
}

func TestParseSetErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"invalid json", `{"filters": [`},
		{"unknown filter type", `{"filters": [{"key": 0, "value": {"filter_type": "BOGUS"}}]}`},
		{"unknown comparison", `{"filters": [{"key": 0, "value": {
			"filter_type": "CONSTANT_COMPARISON", "comparison_type": "COMPARE_LIKE",
			"constant": {"type": {"id": "INTEGER"}, "value": 1}}}]}`},
		{"bad constant", `{"filters": [{"key": 0, "value": {
			"filter_type": "CONSTANT_COMPARISON", "comparison_type": "COMPARE_EQUAL",
			"constant": {"type": {"id": "INTEGER"}, "value": "x"}}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSet([]byte(tt.json)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	if v, ok := IntValue(TypeIDBigInt, -5).Int64(); !ok || v != -5 {
		t.Errorf("Int64: got %d %v", v, ok)
	}
	if _, ok := IntValue(TypeIDBigInt, -5).Uint64(); ok {
		t.Error("negative value must not fit uint64")
	}
	if _, ok := UintValue(TypeIDUBigInt, math.MaxUint64).Int64(); ok {
		t.Error("MaxUint64 must not fit int64")
	}
	h := Value{Type: LogicalType{ID: TypeIDHugeInt}, Data: HugeInt{Upper: -1, Lower: math.MaxUint64}}
	if v, ok := h.Int64(); !ok || v != -1 {
		t.Errorf("HugeInt -1: got %d %v", v, ok)
	}
	if !DoubleValue(math.NaN()).IsNaN() {
		t.Error("expected NaN")
	}
	if DecimalValue("1.50", 4, 2).String() != "1.50" {
		t.Errorf("decimal text lost: %s", DecimalValue("1.50", 4, 2))
	}
	if NullValue(LogicalType{ID: TypeIDInteger}).String() != "NULL" {
		t.Error("expected NULL")
	}
}

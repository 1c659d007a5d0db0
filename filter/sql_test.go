package filter

import (
	"errors"
	"math"
	"testing"
)

func TestSQLEncoderEncode(t *testing.T) {
	enc := NewSQLEncoder(nil)

	tests := []struct {
		name   string
		node   *Node
		column string
		want   string
	}{
		{"equal int", Compare(CompareEqual, IntValue(TypeIDInteger, 42)), "id", "id = 42"},
		{"not equal string", Compare(CompareNotEqual, VarcharValue("it's")), "name", "name <> 'it''s'"},
		{"quoted column", Compare(CompareLessThan, DoubleValue(1.5)), "my col", `"my col" < 1.5`},
		{"reserved column", IsNull(), "select", `"select" IS NULL`},
		{"is not null", IsNotNull(), "x", "x IS NOT NULL"},
		{"nan", Compare(CompareGreaterThanOrEqual, DoubleValue(math.NaN())), "f", "f >= 'nan'::DOUBLE"},
		{"decimal", Compare(CompareEqual, DecimalValue("1.25", 10, 2)), "d", "d = CAST('1.25' AS DECIMAL(10,2))"},
		{"date", Compare(CompareEqual, DateValue(19000)), "d", "d = DATE '2022-01-08'"},
		{"timestamp", Compare(CompareGreaterThan, TimestampValue(TypeIDTimestamp, 1_500_000)), "ts", "ts > TIMESTAMP '1970-01-01 00:00:01.500000'"},
		{"blob", Compare(CompareEqual, BlobValue([]byte{0xde, 0xad})), "b", `b = '\xde\xad'::BLOB`},
		{
			"and",
			And(Compare(CompareGreaterThan, IntValue(TypeIDInteger, 1)), Compare(CompareLessThan, IntValue(TypeIDInteger, 5))),
			"x", "(x > 1 AND x < 5)",
		},
		{
			"and drops dynamic",
			And(Compare(CompareGreaterThan, IntValue(TypeIDInteger, 1)), Dynamic()),
			"x", "x > 1",
		},
		{
			"or with dynamic is always true",
			Or(Compare(CompareGreaterThan, IntValue(TypeIDInteger, 1)), Dynamic()),
			"x", "",
		},
		{"struct extract", StructExtract(0, "a", Compare(CompareEqual, IntValue(TypeIDInteger, 3))), "s", "struct_extract(s, 'a') = 3"},
		{"in", In(IntValue(TypeIDInteger, 1), IntValue(TypeIDInteger, 2)), "x", "x IN (1, 2)"},
		{"empty in", In(), "x", "FALSE"},
		{"optional", Optional(IsNull()), "x", "x IS NULL"},
		{"dynamic", Dynamic(), "x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encode(tt.node, tt.column)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLEncoderUnsupported(t *testing.T) {
	enc := NewSQLEncoder(nil)
	odd := Value{Type: LogicalType{ID: TypeIDInterval}, Data: "1 day"}

	_, err := enc.Encode(Compare(CompareEqual, odd), "x")
	if !errors.Is(err, ErrNotEncodable) {
		t.Fatalf("expected ErrNotEncodable, got %v", err)
	}

	// An OR with an unencodable branch cannot be partially rendered.
	_, err = enc.Encode(Or(IsNull(), Compare(CompareEqual, odd)), "x")
	if err == nil {
		t.Fatal("expected error for OR with unencodable child")
	}

	// An unnamed struct field has no SQL accessor.
	_, err = enc.Encode(StructExtract(1, "", IsNull()), "s")
	if err == nil {
		t.Fatal("expected error for unnamed struct field")
	}
}

func TestSQLEncoderEncodeSet(t *testing.T) {
	enc := NewSQLEncoder(&EncoderOptions{
		ColumnMapping:     map[string]string{"id": "uid"},
		ColumnExpressions: map[string]string{"total": "(price * qty)"},
	})
	odd := Value{Type: LogicalType{ID: TypeIDInterval}, Data: "1 day"}

	set := Set{
		{Column: 0, Filter: Compare(CompareEqual, IntValue(TypeIDInteger, 7))},
		{Column: 1, Filter: Compare(CompareGreaterThan, DoubleValue(10))},
		{Column: 2, Filter: Compare(CompareEqual, odd)},
		{Column: 9, Filter: IsNull()},
	}

	where, rest := enc.EncodeSet(set, []string{"id", "total", "span"})
	if want := "(uid = 7) AND ((price * qty) > 10)"; where != want {
		t.Errorf("got %q, want %q", where, want)
	}
	if len(rest) != 2 || rest[0].Column != 2 || rest[1].Column != 9 {
		t.Errorf("unexpected rest: %+v", rest)
	}
}

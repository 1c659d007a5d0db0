//go:build duckdb_arrow

package duckhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/duckbridge/filter"
	"github.com/hugr-lab/duckbridge/flatir"
	"github.com/hugr-lab/duckbridge/pushdown"
	"github.com/hugr-lab/duckbridge/scan"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func openHost(t *testing.T) *Host {
	t.Helper()
	h, err := Open(context.Background(), "", quiet)
	if err != nil {
		t.Fatalf("DuckDB not available: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func column(t *testing.T, r array.RecordReader) []string {
	t.Helper()
	defer r.Release()
	var out []string
	for r.Next() {
		col := r.RecordBatch().Column(0)
		for i := 0; i < col.Len(); i++ {
			// ValueStr may alias the batch buffers, which the next Next releases.
			out = append(out, strings.Clone(col.ValueStr(i)))
		}
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSQLHolder(t *testing.T) {
	ctx := context.Background()
	h := openHost(t)
	if err := h.Exec(ctx, "CREATE TABLE items AS SELECT i, 'item-' || i::VARCHAR AS name FROM range(10) r(i)"); err != nil {
		t.Fatal(err)
	}

	holder := NewSQLHolder(h, "items")
	f, err := scan.NewHolderFactory(ctx, holder, scan.HolderOptions{Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	if f.Gate().Mode != pushdown.Permissive {
		t.Errorf("expected the permissive gate, got %s", f.Gate().Mode)
	}

	tests := []struct {
		name    string
		columns []string
		filters filter.Set
		want    string
	}{
		{"all", []string{"i"}, nil, "[0 1 2 3 4 5 6 7 8 9]"},
		{"range", []string{"i"}, filter.Set{{Column: 0, Filter: filter.Compare(filter.CompareGreaterThan, filter.IntValue(filter.TypeIDBigInt, 6))}}, "[7 8 9]"},
		{"text", []string{"name"}, filter.Set{{Column: 1, Filter: filter.Compare(filter.CompareEqual, filter.VarcharValue("item-3"))}}, "[item-3]"},
		{"dynamic filter left to the host", []string{"i"}, filter.Set{{Column: 0, Filter: filter.Dynamic()}}, "[0 1 2 3 4 5 6 7 8 9]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.Produce(ctx, scan.Params{Columns: tt.columns, Filters: tt.filters})
			if err != nil {
				t.Fatal(err)
			}
			if got := column(t, s.RecordReader()); fmt.Sprint(got) != tt.want {
				t.Errorf("got %v, want %s", got, tt.want)
			}
		})
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if n := holder.Active(); n != 0 {
		t.Errorf("expected every produce released, %d active", n)
	}
}

func TestSQLHolderQuery(t *testing.T) {
	h := openHost(t)
	holder := NewSQLHolder(h, "items")

	arena := flatir.NewArena()
	defer arena.Reset()
	notNull, err := flatir.Serialize(arena, filter.IsNotNull())
	if err != nil {
		t.Fatal(err)
	}
	above, err := flatir.Serialize(arena, filter.Compare(filter.CompareGreaterThan, filter.IntValue(filter.TypeIDInteger, 1)))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		params *flatir.ProduceParams
		want   string
	}{
		{
			name: "single filter",
			params: &flatir.ProduceParams{
				ProjectedColumns: []string{"i", "name"},
				Filters:          []flatir.ColumnFilter{{Column: 1, Name: "name", Filter: *notNull}},
			},
			want: `SELECT i, name FROM items WHERE name IS NOT NULL`,
		},
		{
			name: "conjunction",
			params: &flatir.ProduceParams{
				Filters: []flatir.ColumnFilter{
					{Column: 0, Name: "i", Filter: *above},
					{Column: 1, Name: "name", Filter: *notNull},
				},
			},
			want: `SELECT * FROM items WHERE (i > 1) AND (name IS NOT NULL)`,
		},
		{
			name: "json filter on a named column",
			params: &flatir.ProduceParams{
				ProjectedColumns: []string{"i"},
				Filters:          []flatir.ColumnFilter{{Column: 1, Name: "name", Filter: *notNull}},
				JSONFilters:      `{"filters": [{"key": 1, "value": {"filter_type": "IS_NULL"}}, {"key": 5, "value": {"filter_type": "IS_NULL"}}]}`,
			},
			want: `SELECT i FROM items WHERE (name IS NOT NULL) AND (name IS NULL)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := holder.SQL(tt.params)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := holder.SQL(&flatir.ProduceParams{JSONFilters: `{"filters": [`}); err == nil {
		t.Error("expected malformed json filters to fail")
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	h := openHost(t)
	mem := memory.NewGoAllocator()

	schema := arrow.NewSchema([]arrow.Field{{Name: "n", Type: arrow.PrimitiveTypes.Int64}}, nil)
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues([]int64{1, 2, 3, 4}, nil)
	arr := b.NewArray()
	defer arr.Release()
	col := arrow.NewChunked(arrow.PrimitiveTypes.Int64, []arrow.Array{arr})
	defer col.Release()
	tbl := array.NewTable(schema, []arrow.Column{*arrow.NewColumn(schema.Field(0), col)}, 4)
	defer tbl.Release()

	f, err := scan.NewTableFactory(ctx, tbl, scan.TableOptions{Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	pushed := scan.Params{Filters: filter.Set{{Column: 0, Filter: filter.Compare(filter.CompareLessThan, filter.IntValue(filter.TypeIDBigInt, 3))}}}
	if err := h.Register(ctx, "nums", f, pushed, false); err != nil {
		t.Fatal(err)
	}
	r, err := h.Query(ctx, "SELECT max(n) FROM nums")
	if err != nil {
		t.Fatal(err)
	}
	if got := column(t, r); fmt.Sprint(got) != "[2]" {
		t.Errorf("expected the pushed filter applied, got %v", got)
	}

	if err := h.Register(ctx, "nums", f, scan.Params{}, false); !errors.Is(err, ErrViewExists) {
		t.Errorf("expected ErrViewExists, got %v", err)
	}
	if err := h.Register(ctx, "nums", f, scan.Params{}, true); err != nil {
		t.Fatal(err)
	}
	r, err = h.Query(ctx, "SELECT count(*) FROM nums")
	if err != nil {
		t.Fatal(err)
	}
	if got := column(t, r); fmt.Sprint(got) != "[4]" {
		t.Errorf("expected the replaced view, got %v", got)
	}

	if err := h.Unregister(ctx, "nums"); err != nil {
		t.Fatal(err)
	}
	if err := h.Unregister(ctx, "nums"); !errors.Is(err, ErrNoView) {
		t.Errorf("expected ErrNoView, got %v", err)
	}
}

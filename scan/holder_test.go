package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hugr-lab/duckbridge/filter"
	"github.com/hugr-lab/duckbridge/flatir"
	"github.com/hugr-lab/duckbridge/internal/metrics"
	"github.com/hugr-lab/duckbridge/internal/recovery"
	"github.com/hugr-lab/duckbridge/stats"
)

// fakeHolder serves a fixed record, projecting as asked and recording the
// filters it receives. It does not filter.
type fakeHolder struct {
	rec   arrow.RecordBatch
	views bool
	panic bool

	mu       sync.Mutex
	calls    []string
	released []any
	next     int
}

func newFakeHolder(t *testing.T, mem memory.Allocator) *fakeHolder {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "n", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.StringView},
		{Name: "d", Type: &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int8, ValueType: arrow.BinaryTypes.String}},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.StringViewBuilder).AppendValues([]string{"x", "y", "z"}, nil)
	db := b.Field(2).(*array.BinaryDictionaryBuilder)
	for _, s := range []string{"a", "b", "a"} {
		if err := db.AppendString(s); err != nil {
			t.Fatal(err)
		}
	}
	return &fakeHolder{rec: b.NewRecordBatch()}
}

func (h *fakeHolder) Produce(_ context.Context, p *flatir.ProduceParams) (*HolderResult, error) {
	if h.panic {
		panic("holder exploded")
	}

	// Render the call while p is still valid.
	call := fmt.Sprint(p.ProjectedColumns)
	set, err := p.Set()
	if err != nil {
		return nil, err
	}
	for i, cf := range set {
		call += fmt.Sprintf(" %s:%s", p.Filters[i].Name, cf.Filter)
	}

	schema := h.rec.Schema()
	cols := make([]arrow.Array, 0, len(p.ProjectedColumns))
	fields := make([]arrow.Field, 0, len(p.ProjectedColumns))
	if len(p.ProjectedColumns) == 0 {
		cols = append(cols, h.rec.Columns()...)
		fields = schema.Fields()
	}
	for _, name := range p.ProjectedColumns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("no column %q", name)
		}
		cols = append(cols, h.rec.Column(idx[0]))
		fields = append(fields, schema.Field(idx[0]))
	}
	out := arrow.NewSchema(fields, nil)
	rec := array.NewRecordBatch(out, cols, h.rec.NumRows())
	defer rec.Release()
	reader, err := array.NewRecordReader(out, []arrow.RecordBatch{rec})
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	h.next++
	return &HolderResult{Reader: reader, Token: h.next}, nil
}

func (h *fakeHolder) Release(token any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = append(h.released, token)
	return nil
}

func (h *fakeHolder) SupportsPushdown(arrow.DataType) bool { return true }
func (h *fakeHolder) SupportsViews() bool                  { return h.views }

func (h *fakeHolder) state() ([]string, []any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...), append([]any(nil), h.released...)
}

type summaryHolder struct {
	*fakeHolder
	summaries []stats.Summary
}

func (h summaryHolder) Summaries(context.Context) ([]stats.Summary, error) {
	return h.summaries, nil
}

func TestHolderBindAndRelease(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	h := newFakeHolder(t, mem)
	defer h.rec.Release()

	f, err := NewHolderFactory(context.Background(), h, HolderOptions{Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	if f.Schema().NumFields() != 3 {
		t.Fatalf("unexpected schema %s", f.Schema())
	}
	if f.Gate().Mode.String() != "strict" {
		t.Errorf("holder without view support must use the strict gate")
	}
	if _, ok := f.Cardinality(); ok {
		t.Error("cardinality must be unknown without a row count")
	}

	s, err := f.Produce(context.Background(), Params{Columns: []string{"n"}})
	if err != nil {
		t.Fatal(err)
	}
	if rows := drain(t, s); fmt.Sprint(rows) != "[1 2 3]" {
		t.Errorf("unexpected rows %v", rows)
	}
	if f.Pending() != 1 {
		t.Fatalf("expected the finished stream's token to be queued, got %d", f.Pending())
	}
	if _, released := h.state(); len(released) != 0 {
		t.Fatalf("tokens must wait for the next flush, released %v", released)
	}

	s, err = f.Produce(context.Background(), Params{Columns: []string{"d"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, released := h.state(); fmt.Sprint(released) != "[2]" {
		t.Errorf("produce should flush queued tokens, released %v", released)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, released := h.state(); fmt.Sprint(released) != "[2 1]" {
		t.Errorf("close should drain the bind-time produce, released %v", released)
	}

	// A stream finishing after close releases its token directly.
	s.Close()
	calls, released := h.state()
	if fmt.Sprint(released) != "[2 1 3]" {
		t.Errorf("late stream token not released, got %v", released)
	}
	if calls[0] != "[]" {
		t.Errorf("bind-time produce must carry empty params, got %q", calls[0])
	}
	if _, err := f.Produce(context.Background(), Params{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestHolderFilters(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	gt := filter.Compare(filter.CompareGreaterThan, filter.IntValue(filter.TypeIDBigInt, 1))
	eq := filter.Compare(filter.CompareEqual, filter.VarcharValue("a"))
	set := filter.Set{{Column: 0, Filter: gt}, {Column: 1, Filter: eq}, {Column: 2, Filter: eq}, {Column: 9, Filter: eq}}

	tests := []struct {
		name    string
		views   bool
		want    string
		pushed  float64
		skipped float64
	}{
		{"strict", false, `[n d] n:> 1`, 1, 2},
		{"permissive", true, `[n d] n:> 1 d:= "a"`, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHolder(t, mem)
			defer h.rec.Release()
			h.views = tt.views

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			f, err := NewHolderFactory(context.Background(), h, HolderOptions{Logger: quiet, Metrics: m})
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			s, err := f.Produce(context.Background(), Params{Columns: []string{"n", "d"}, Filters: set})
			if err != nil {
				t.Fatal(err)
			}
			s.Close()

			calls, _ := h.state()
			if got := calls[len(calls)-1]; got != tt.want {
				t.Errorf("holder received %q, want %q", got, tt.want)
			}
			counts := map[string]float64{
				metrics.OutcomePushed:  tt.pushed,
				metrics.OutcomeSkipped: tt.skipped,
				metrics.OutcomeFailed:  1,
			}
			for outcome, want := range counts {
				if got := testutil.ToFloat64(m.FiltersTotal().WithLabelValues(metrics.TargetHolder, outcome)); got != want {
					t.Errorf("%s: expected %v, got %v", outcome, want, got)
				}
			}
		})
	}
}

func TestHolderColumnNames(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	h := newFakeHolder(t, mem)
	defer h.rec.Release()

	f, err := NewHolderFactory(context.Background(), h, HolderOptions{
		Logger:      quiet,
		ColumnNames: []string{"num", "str", "dict"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	s, err := f.Produce(context.Background(), Params{
		Columns: []string{"num"},
		Filters: filter.Set{{Column: 0, Filter: filter.IsNotNull()}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Schema().Field(0).Name != "num" {
		t.Errorf("stream must use host names, got %s", s.Schema())
	}
	s.Close()

	calls, _ := h.state()
	if got := calls[len(calls)-1]; got != "[n] n:IS NOT NULL" {
		t.Errorf("holder must receive its own names, got %q", got)
	}

	if _, err := NewHolderFactory(context.Background(), h, HolderOptions{Logger: quiet, ColumnNames: []string{"one"}}); err == nil {
		t.Error("expected an error for a name count mismatch")
	}
}

func TestHolderStatistics(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	h := newFakeHolder(t, mem)
	defer h.rec.Release()

	summaries := []stats.Summary{
		{Column: 0, TypeTag: stats.TagInt, RowCount: 3, MinInt: 1, MaxInt: 3},
		{Column: 1, TypeTag: stats.TagString, RowCount: 3, MinString: "x", MaxString: "z"},
		{Column: 7, TypeTag: stats.TagInt, RowCount: 3},
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f, err := NewHolderFactory(context.Background(), summaryHolder{fakeHolder: h, summaries: summaries}, HolderOptions{
		Logger:     quiet,
		Metrics:    m,
		Statistics: stats.DefaultOptions(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if rows, ok := f.Cardinality(); !ok || rows != 3 {
		t.Errorf("expected cardinality from summaries, got %d, %v", rows, ok)
	}

	n, err := f.Statistics(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n == nil || n.Validity() != stats.NoNulls {
		t.Fatalf("unexpected statistics %+v", n)
	}
	if hi, _ := n.Max.Int64(); hi != 3 {
		t.Errorf("expected max 3, got %v", n.Max)
	}
	if s, _ := f.Statistics(context.Background(), 1); s == nil || s.MaxStringLength == nil {
		t.Errorf("expected text statistics, got %+v", s)
	}
	if s, _ := f.Statistics(context.Background(), 2); s != nil {
		t.Error("column without a summary must be unknown")
	}
	if _, err := f.Statistics(context.Background(), 3); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("expected ErrUnknownColumn, got %v", err)
	}
	if got := testutil.ToFloat64(m.StatisticsTotal().WithLabelValues(metrics.ModeIngested, metrics.OutcomeComputed)); got != 2 {
		t.Errorf("expected 2 ingested columns, got %v", got)
	}

	off, err := NewHolderFactory(context.Background(), h, HolderOptions{Logger: quiet, Summaries: summaries, RowCount: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer off.Close()
	if s, _ := off.Statistics(context.Background(), 0); s != nil {
		t.Error("statistics disabled by options must be unknown")
	}
	if rows, _ := off.Cardinality(); rows != 10 {
		t.Errorf("explicit row count must win, got %d", rows)
	}
}

func TestHolderBindErrors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	if _, err := NewHolderFactory(context.Background(), nil, HolderOptions{}); !errors.Is(err, ErrNilCapability) {
		t.Errorf("expected ErrNilCapability, got %v", err)
	}

	h := newFakeHolder(t, mem)
	defer h.rec.Release()
	h.panic = true

	_, err := NewHolderFactory(context.Background(), h, HolderOptions{Logger: quiet})
	var pe *recovery.PanicError
	if !errors.As(err, &pe) {
		t.Errorf("expected a recovered panic, got %v", err)
	}
}

package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/duckbridge/convert"
	"github.com/hugr-lab/duckbridge/export"
	"github.com/hugr-lab/duckbridge/flatir"
	"github.com/hugr-lab/duckbridge/internal/metrics"
	"github.com/hugr-lab/duckbridge/internal/recovery"
	"github.com/hugr-lab/duckbridge/pushdown"
	"github.com/hugr-lab/duckbridge/stats"
)

// HolderResult is one holder produce.
type HolderResult struct {
	Reader array.RecordReader
	// Token identifies the holder resources behind Reader. It is passed
	// back to Holder.Release once the host is done with the stream.
	Token any
}

// Holder is an opaque, lazily evaluated source. It receives the projection
// and filters in flat form and applies them itself.
//
// params and every byte slice it references are only valid during the
// Produce call; a holder that needs them later must copy them.
type Holder interface {
	Produce(ctx context.Context, params *flatir.ProduceParams) (*HolderResult, error)
	Release(token any) error
}

// PushdownTypes is implemented by holders that declare which column types
// they can filter.
type PushdownTypes interface {
	SupportsPushdown(dt arrow.DataType) bool
	// SupportsViews reports that the holder fully delegates filtering to
	// an engine of its own. Only such holders get the permissive gate.
	SupportsViews() bool
}

// StatisticsSource is implemented by holders that can supply precomputed
// column summaries.
type StatisticsSource interface {
	Summaries(ctx context.Context) ([]stats.Summary, error)
}

// HolderOptions configures a HolderFactory.
type HolderOptions struct {
	// Statistics.ComputeMinMax false disables statistics entirely.
	Statistics stats.Options
	// Summaries are precomputed per-column statistics. When empty and the
	// holder is a StatisticsSource, they are fetched from it at bind.
	Summaries []stats.Summary
	// ColumnNames renames the holder's columns for the host. When set it
	// must have one name per column.
	ColumnNames []string
	// RowCount is the holder's row count; zero means unknown unless the
	// summaries carry one.
	RowCount int64

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// HolderFactory serves an opaque Holder.
type HolderFactory struct {
	holder       Holder
	schema       *arrow.Schema
	holderSchema *arrow.Schema
	rows         int64
	gate         pushdown.Gate
	stats        []*stats.BaseStatistics

	logger   *slog.Logger
	metrics  *metrics.Metrics
	exporter *export.Exporter

	// initial is the bind-time produce used to capture the schema.
	initial *HolderResult

	mu      sync.Mutex
	pending []any
	closed  bool
}

// NewHolderFactory binds h. The schema is captured with one produce call
// carrying empty params; its resources are released on Close.
func NewHolderFactory(ctx context.Context, h Holder, opts HolderOptions) (*HolderFactory, error) {
	if h == nil {
		return nil, &BindError{Source: "holder", Err: ErrNilCapability}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	initial, err := recovery.RecoverToValue(logger, "Produce", func() (*HolderResult, error) {
		return h.Produce(ctx, &flatir.ProduceParams{})
	})
	if err != nil {
		return nil, &BindError{Source: "holder", Err: err}
	}
	if initial == nil || initial.Reader == nil {
		return nil, &BindError{Source: "holder reader", Err: ErrNilCapability}
	}

	f := &HolderFactory{
		holder:       h,
		holderSchema: initial.Reader.Schema(),
		rows:         opts.RowCount,
		logger:       logger,
		metrics:      opts.Metrics,
		exporter:     &export.Exporter{Metrics: opts.Metrics},
		initial:      initial,
	}
	fail := func(source string, err error) (*HolderFactory, error) {
		f.Close()
		return nil, &BindError{Source: source, Err: err}
	}

	if err := checkSchema(f.holderSchema); err != nil {
		return fail("holder schema", err)
	}
	f.schema = f.holderSchema
	if len(opts.ColumnNames) > 0 {
		if len(opts.ColumnNames) != f.holderSchema.NumFields() {
			return fail("column names", fmt.Errorf("%d names for %d columns", len(opts.ColumnNames), f.holderSchema.NumFields()))
		}
		fields := f.holderSchema.Fields()
		for i := range fields {
			fields[i].Name = opts.ColumnNames[i]
		}
		md := f.holderSchema.Metadata()
		f.schema = arrow.NewSchema(fields, &md)
	}

	f.gate = pushdown.Gate{Mode: pushdown.Strict}
	if pt, ok := h.(PushdownTypes); ok && pt.SupportsViews() {
		f.gate = pushdown.Gate{Mode: pushdown.Permissive, HolderSupports: pt.SupportsPushdown}
	}

	if opts.Statistics.ComputeMinMax {
		f.ingest(ctx, opts.Summaries)
	}

	logger.Debug("holder bound",
		"columns", f.schema.NumFields(),
		"rows", f.rows,
		"gate", f.gate.Mode.String(),
		"statistics", len(f.stats) > 0,
	)
	return f, nil
}

func (f *HolderFactory) ingest(ctx context.Context, summaries []stats.Summary) {
	if len(summaries) == 0 {
		src, ok := f.holder.(StatisticsSource)
		if !ok {
			return
		}
		var err error
		summaries, err = recovery.RecoverToValue(f.logger, "Summaries", func() ([]stats.Summary, error) {
			return src.Summaries(ctx)
		})
		if err != nil {
			f.logger.Warn("holder summaries unavailable", "error", err)
			return
		}
	}

	f.stats = make([]*stats.BaseStatistics, f.schema.NumFields())
	for _, s := range summaries {
		if s.Column < 0 || s.Column >= len(f.stats) {
			f.logger.Warn("summary for unknown column", "column", s.Column)
			continue
		}
		if f.rows == 0 && s.RowCount > 0 {
			f.rows = s.RowCount
		}
		field := f.schema.Field(s.Column)
		lt, err := convert.LogicalTypeOf(field.Type)
		if err != nil {
			f.metrics.Statistics(metrics.ModeIngested, metrics.OutcomeUnknown)
			continue
		}
		c, err := stats.Ingest(s, lt)
		if err != nil {
			f.logger.Warn("summary rejected", "column", field.Name, "error", err)
			f.metrics.Statistics(metrics.ModeIngested, metrics.OutcomeUnknown)
			continue
		}
		if c == nil {
			f.metrics.Statistics(metrics.ModeIngested, metrics.OutcomeUnknown)
			continue
		}
		f.stats[s.Column] = stats.ToBase(c)
		f.metrics.Statistics(metrics.ModeIngested, metrics.OutcomeComputed)
	}
}

// Capabilities implements Factory.
func (f *HolderFactory) Capabilities() Capabilities {
	return Capabilities{
		GetSchema:      f.Schema,
		GetCardinality: f.Cardinality,
		Produce:        f.Produce,
		GetStatistics:  f.Statistics,
	}
}

func (f *HolderFactory) Schema() *arrow.Schema { return f.schema }

// Cardinality reports the row count when it is positive.
func (f *HolderFactory) Cardinality() (int64, bool) {
	return f.rows, f.rows > 0
}

// Gate is the gate applied to this holder's filters.
func (f *HolderFactory) Gate() pushdown.Gate { return f.gate }

// Statistics returns the ingested statistics of column, or nil.
func (f *HolderFactory) Statistics(_ context.Context, column int) (*stats.BaseStatistics, error) {
	if column < 0 || column >= f.schema.NumFields() {
		return nil, fmt.Errorf("%w: index %d of %d", ErrUnknownColumn, column, f.schema.NumFields())
	}
	if f.stats == nil {
		return nil, nil
	}
	return f.stats[column], nil
}

// Produce serializes the projection and the eligible filters and hands
// them to the holder. Release tokens queued by finished streams are
// flushed first.
func (f *HolderFactory) Produce(ctx context.Context, p Params) (*Stream, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	f.flush()

	cols, err := projection(f.schema, p.Columns)
	if err != nil {
		return nil, err
	}

	arena := flatir.NewArena()
	defer arena.Reset()

	params := &flatir.ProduceParams{ProjectedColumns: make([]string, len(cols))}
	for i, c := range cols {
		params.ProjectedColumns[i] = f.holderSchema.Field(c).Name
	}

	var pushed, skipped, failed int
	for _, cf := range p.Filters {
		idx := cf.Column
		if mapped, ok := p.FilterToColumn[idx]; ok {
			idx = mapped
		}
		if idx < 0 || idx >= f.holderSchema.NumFields() {
			failed++
			f.metrics.Filter(metrics.TargetHolder, metrics.OutcomeFailed)
			f.logger.Warn("filter column out of range", "target", metrics.TargetHolder, "column", cf.Column, "mapped", idx)
			continue
		}
		field := f.holderSchema.Field(idx)
		if reason := f.gate.Reason(field.Type); reason != "" {
			skipped++
			f.metrics.Filter(metrics.TargetHolder, metrics.OutcomeSkipped)
			f.logger.Debug("filter not pushed", "target", metrics.TargetHolder, "column", field.Name, "reason", reason)
			continue
		}
		node, err := flatir.Serialize(arena, cf.Filter)
		if err != nil {
			failed++
			f.metrics.Filter(metrics.TargetHolder, metrics.OutcomeFailed)
			f.logger.Warn("filter serialization failed", "target", metrics.TargetHolder, "column", field.Name, "error", err)
			continue
		}
		params.Filters = append(params.Filters, flatir.ColumnFilter{Column: idx, Name: field.Name, Filter: *node})
		pushed++
		f.metrics.Filter(metrics.TargetHolder, metrics.OutcomePushed)
	}
	f.logger.Debug("filters serialized", "target", metrics.TargetHolder,
		"pushed", pushed, "skipped", skipped, "failed", failed)

	res, err := recovery.RecoverToValue(f.logger, "Produce", func() (*HolderResult, error) {
		return f.holder.Produce(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("scan: holder produce: %w", err)
	}
	if res == nil || res.Reader == nil {
		return nil, fmt.Errorf("scan: holder produce: %w", ErrNilCapability)
	}
	if n := res.Reader.Schema().NumFields(); n != len(cols) {
		res.Reader.Release()
		f.enqueue(res.Token)
		return nil, fmt.Errorf("scan: holder produced %d columns, want %d", n, len(cols))
	}

	token := res.Token
	return recordStream(projectSchema(f.schema, cols), res.Reader, f.exporter, func() {
		f.enqueue(token)
	}), nil
}

// enqueue records a token whose stream is done. It may run on any
// goroutine. After Close tokens are released immediately.
func (f *HolderFactory) enqueue(token any) {
	if token == nil {
		return
	}
	f.mu.Lock()
	if !f.closed {
		f.pending = append(f.pending, token)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.release([]any{token})
}

// Pending reports how many release tokens are queued.
func (f *HolderFactory) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *HolderFactory) flush() error {
	f.mu.Lock()
	tokens := f.pending
	f.pending = nil
	f.mu.Unlock()
	return f.release(tokens)
}

func (f *HolderFactory) release(tokens []any) error {
	var errs []error
	for _, tok := range tokens {
		err := recovery.RecoverToError(f.logger, "Release", func() error {
			return f.holder.Release(tok)
		})
		if err != nil {
			f.logger.Error("holder release failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close drains every queued token and the bind-time produce. Streams that
// finish later release their tokens directly.
func (f *HolderFactory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	tokens := f.pending
	f.pending = nil
	f.mu.Unlock()

	if f.initial != nil {
		f.initial.Reader.Release()
		if f.initial.Token != nil {
			tokens = append(tokens, f.initial.Token)
		}
		f.initial = nil
	}
	return f.release(tokens)
}

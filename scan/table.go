package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/duckbridge/export"
	"github.com/hugr-lab/duckbridge/expr"
	"github.com/hugr-lab/duckbridge/internal/metrics"
	"github.com/hugr-lab/duckbridge/pushdown"
	"github.com/hugr-lab/duckbridge/stats"
)

// TableOptions configures a TableFactory.
type TableOptions struct {
	// Statistics selects what derived statistics are computed.
	Statistics stats.Options
	// EagerStatistics computes every column's statistics at bind, in
	// parallel, instead of on first request.
	EagerStatistics bool
	// ChunkSize caps the rows per produced batch. Zero keeps the table's
	// own chunking, aligned across columns.
	ChunkSize int64
	// Allocator is used for filtered batches. Nil means the default.
	Allocator memory.Allocator
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// TableFactory serves a materialized table. Pushed filters are translated
// with the strict gate and evaluated here; unfiltered scans export the
// table's buffers directly.
type TableFactory struct {
	matrix *export.ChunkMatrix
	schema *arrow.Schema
	rows   int64

	opts       TableOptions
	logger     *slog.Logger
	alloc      memory.Allocator
	translator *pushdown.Translator
	exporter   *export.Exporter
	stats      []columnStats

	closeOnce sync.Once
	closed    atomic.Bool
}

// columnStats is computed at most once.
type columnStats struct {
	once  sync.Once
	value *stats.BaseStatistics
}

// NewTableFactory binds tbl. The factory holds its own references; the
// caller may release tbl afterwards.
func NewTableFactory(ctx context.Context, tbl arrow.Table, opts TableOptions) (*TableFactory, error) {
	if tbl == nil {
		return nil, &BindError{Source: "table", Err: ErrNilCapability}
	}
	if err := checkSchema(tbl.Schema()); err != nil {
		return nil, &BindError{Source: "table", Err: err}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}

	f := &TableFactory{
		matrix: export.NewChunkMatrix(tbl, opts.ChunkSize),
		schema: tbl.Schema(),
		rows:   tbl.NumRows(),
		opts:   opts,
		logger: logger,
		alloc:  alloc,
		translator: &pushdown.Translator{
			Gate:    pushdown.Gate{Mode: pushdown.Strict},
			Target:  metrics.TargetTable,
			Logger:  logger,
			Metrics: opts.Metrics,
		},
		exporter: &export.Exporter{Metrics: opts.Metrics},
		stats:    make([]columnStats, tbl.Schema().NumFields()),
	}

	if opts.EagerStatistics && opts.Statistics.ComputeMinMax {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range f.stats {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				f.statistics(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			f.Close()
			return nil, &BindError{Source: "statistics", Err: err}
		}
	}

	logger.Debug("table bound",
		"columns", f.schema.NumFields(),
		"rows", f.rows,
		"chunks", f.matrix.NumChunks(),
	)
	return f, nil
}

// Capabilities implements Factory.
func (f *TableFactory) Capabilities() Capabilities {
	return Capabilities{
		GetSchema:      f.Schema,
		GetCardinality: f.Cardinality,
		Produce:        f.Produce,
		GetStatistics:  f.Statistics,
	}
}

func (f *TableFactory) Schema() *arrow.Schema { return f.schema }

// Cardinality reports the row count when it is positive.
func (f *TableFactory) Cardinality() (int64, bool) {
	return f.rows, f.rows > 0
}

// Statistics returns the derived statistics of column, or nil when they
// are unknown.
func (f *TableFactory) Statistics(_ context.Context, column int) (*stats.BaseStatistics, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if column < 0 || column >= len(f.stats) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrUnknownColumn, column, len(f.stats))
	}
	return f.statistics(column), nil
}

func (f *TableFactory) statistics(i int) *stats.BaseStatistics {
	cs := &f.stats[i]
	cs.once.Do(func() {
		name := f.schema.Field(i).Name
		if !f.opts.Statistics.ComputeMinMax {
			f.opts.Metrics.Statistics(metrics.ModeDerived, metrics.OutcomeUnknown)
			return
		}

		col, err := f.matrix.Column(i)
		if err != nil {
			f.logger.Warn("statistics column unavailable", "column", name, "error", err)
			return
		}
		defer col.Release()

		start := time.Now()
		c, err := stats.Derive(col, f.opts.Statistics)
		f.opts.Metrics.ObserveDerive(time.Since(start))

		switch {
		case err != nil:
			f.logger.Warn("statistics derivation failed", "column", name, "error", err)
			f.opts.Metrics.Statistics(metrics.ModeDerived, metrics.OutcomeUnknown)
		case c == nil:
			f.opts.Metrics.Statistics(metrics.ModeDerived, metrics.OutcomeUnknown)
		case c.HasNaN:
			f.logger.Debug("min/max withheld for column with NaN", "column", name)
			f.opts.Metrics.Statistics(metrics.ModeDerived, metrics.OutcomeSuppressedNaN)
		default:
			f.opts.Metrics.Statistics(metrics.ModeDerived, metrics.OutcomeComputed)
		}
		cs.value = stats.ToBase(c)
	})
	return cs.value
}

// Produce starts a stream over the table. Filters that translate are
// applied per chunk; a chunk whose filter cannot be evaluated is emitted
// unfiltered and the host filters it.
func (f *TableFactory) Produce(ctx context.Context, p Params) (*Stream, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	cols, err := projection(f.schema, p.Columns)
	if err != nil {
		return nil, err
	}
	res := f.translator.TranslateSet(p.Filters, f.schema, p.FilterToColumn)
	outSchema := projectSchema(f.schema, cols)

	m := f.matrix
	m.Retain()
	pred := res.Expr
	chunk := 0
	next := func() (*export.Array, error) {
		for chunk < m.NumChunks() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			i := chunk
			chunk++
			rec, err := m.Chunk(i)
			if err != nil {
				return nil, err
			}
			if rec.NumRows() == 0 {
				continue
			}
			if pred == nil {
				return f.exporter.ExportChunk(m, i, cols)
			}

			projected := project(outSchema, rec, cols)
			filtered, err := expr.FilterProjected(ctx, pred, rec, projected, f.alloc)
			projected.Release()
			if err != nil {
				f.logger.Warn("pushed filter evaluation failed; emitting unfiltered",
					"filter", pred.String(), "chunk", i, "error", err)
				pred = nil
				return f.exporter.ExportChunk(m, i, cols)
			}
			if filtered.NumRows() == 0 {
				filtered.Release()
				continue
			}
			root := f.exporter.ExportRecord(filtered)
			filtered.Release()
			return root, nil
		}
		return nil, io.EOF
	}
	return newStream(outSchema, next, m.Release), nil
}

func project(schema *arrow.Schema, rec arrow.RecordBatch, cols []int) arrow.RecordBatch {
	arrs := make([]arrow.Array, len(cols))
	for i, c := range cols {
		arrs[i] = rec.Column(c)
	}
	return array.NewRecordBatch(schema, arrs, rec.NumRows())
}

// Close releases the factory's reference to the table.
func (f *TableFactory) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		f.matrix.Release()
	})
	return nil
}

package duckbridge

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/flight"
	"github.com/hugr-lab/duckbridge/scan"
)

// NewTableFactory binds a materialized table with the statistics, chunking
// and metrics settings of cfg.
func NewTableFactory(ctx context.Context, tbl arrow.Table, cfg Config) (*scan.TableFactory, error) {
	return scan.NewTableFactory(ctx, tbl, scan.TableOptions{
		Statistics:      cfg.Statistics,
		EagerStatistics: cfg.EagerStatistics,
		ChunkSize:       cfg.ChunkSize,
		Allocator:       cfg.allocator(),
		Logger:          cfg.logger(),
		Metrics:         cfg.metrics(),
	})
}

// NewHolderFactory binds an opaque holder. Fields of opts that cfg also
// carries are taken from cfg.
func NewHolderFactory(ctx context.Context, h scan.Holder, cfg Config, opts scan.HolderOptions) (*scan.HolderFactory, error) {
	opts.Statistics = cfg.Statistics
	opts.Logger = cfg.logger()
	opts.Metrics = cfg.metrics()
	return scan.NewHolderFactory(ctx, h, opts)
}

// RemoteFactory dials a duckbridge Flight server and binds it as a holder
// factory. Closing the factory does not close the connection; the returned
// holder must be closed after the factory.
func RemoteFactory(ctx context.Context, address string, cfg Config, opts flight.HolderOptions) (*scan.HolderFactory, *flight.Holder, error) {
	if opts.Logger == nil {
		opts.Logger = cfg.logger()
	}
	if opts.Allocator == nil {
		opts.Allocator = cfg.allocator()
	}
	h, err := flight.Dial(ctx, address, opts)
	if err != nil {
		return nil, nil, err
	}
	f, err := NewHolderFactory(ctx, h, cfg, scan.HolderOptions{RowCount: h.RowCount()})
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	return f, h, nil
}

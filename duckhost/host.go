//go:build duckdb_arrow

// Package duckhost runs scan factories inside an embedded DuckDB through
// duckdb-go's Arrow interface. It needs the duckdb_arrow build tag.
//
// A registered view reads one produce of the factory through the C stream
// interface, so it is single pass: the first query that scans it consumes
// it. Register again for another scan.
package duckhost

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/duckdb/duckdb-go/v2"

	"github.com/hugr-lab/duckbridge/filter"
	"github.com/hugr-lab/duckbridge/scan"
)

var (
	// ErrViewExists is returned when registering a name already in use
	// without replace.
	ErrViewExists = errors.New("duckhost: view already registered")
	// ErrNoView is returned when unregistering an unknown name.
	ErrNoView = errors.New("duckhost: no such view")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("duckhost: closed")
)

// Host is an embedded DuckDB database with one Arrow-capable connection.
// Calls are serialized.
type Host struct {
	db     *sql.DB
	conn   *sql.Conn
	arrow  *duckdb.Arrow
	logger *slog.Logger

	mu     sync.Mutex
	views  map[string]func()
	closed bool
}

// Open opens a DuckDB database. An empty dsn is an in-memory database.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}
	connector, err := duckdb.NewConnector(dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("duckhost: open: %w", err)
	}
	db := sql.OpenDB(connector)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("duckhost: connect: %w", err)
	}

	h := &Host{db: db, conn: conn, logger: logger, views: make(map[string]func())}
	err = conn.Raw(func(dc any) error {
		var err error
		h.arrow, err = duckdb.NewArrowFromConn(dc.(driver.Conn))
		return err
	})
	if err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("duckhost: arrow interface: %w", err)
	}
	return h, nil
}

// Register exposes one produce of f as a view called name. p selects the
// projection and the pushed filters.
func (h *Host) Register(ctx context.Context, name string, f scan.Factory, p scan.Params, replace bool) error {
	caps, err := scan.Bind(f)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if release, ok := h.views[name]; ok {
		if !replace {
			return fmt.Errorf("%w: %s", ErrViewExists, name)
		}
		if err := h.dropLocked(ctx, name, release); err != nil {
			return err
		}
	}

	stream, err := caps.Produce(ctx, p)
	if err != nil {
		return err
	}
	reader := stream.RecordReader()
	release, err := h.arrow.RegisterView(reader, name)
	if err != nil {
		reader.Release()
		return fmt.Errorf("duckhost: register %s: %w", name, err)
	}
	h.views[name] = func() {
		release()
		reader.Release()
	}
	h.logger.Debug("view registered", "name", name, "columns", reader.Schema().NumFields())
	return nil
}

// Unregister drops the view and releases its stream.
func (h *Host) Unregister(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	release, ok := h.views[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoView, name)
	}
	return h.dropLocked(ctx, name, release)
}

func (h *Host) dropLocked(ctx context.Context, name string, release func()) error {
	delete(h.views, name)
	_, err := h.conn.ExecContext(ctx, "DROP VIEW IF EXISTS "+filter.QuoteIdentifier(name))
	release()
	if err != nil {
		return fmt.Errorf("duckhost: drop %s: %w", name, err)
	}
	return nil
}

// Query runs query and returns its result fully read into memory.
func (h *Host) Query(ctx context.Context, query string, args ...any) (array.RecordReader, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	return h.queryLocked(ctx, query, args...)
}

// queryLocked drains the result before returning so the connection is free
// for the next call.
func (h *Host) queryLocked(ctx context.Context, query string, args ...any) (array.RecordReader, error) {
	r, err := h.arrow.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duckhost: query: %w", err)
	}
	defer r.Release()

	var recs []arrow.RecordBatch
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for r.Next() {
		rec := r.RecordBatch()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("duckhost: query: %w", err)
	}
	return array.NewRecordReader(r.Schema(), recs)
}

// Exec runs a statement without results.
func (h *Host) Exec(ctx context.Context, query string, args ...any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	_, err := h.conn.ExecContext(ctx, query, args...)
	return err
}

// Close drops every view and closes the database.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	for name, release := range h.views {
		errs = append(errs, h.dropLocked(context.Background(), name, release))
	}
	errs = append(errs, h.conn.Close(), h.db.Close())
	return errors.Join(errs...)
}

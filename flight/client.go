package flight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/duckbridge/auth"
	"github.com/hugr-lab/duckbridge/flatir"
	"github.com/hugr-lab/duckbridge/internal/msgpack"
	"github.com/hugr-lab/duckbridge/scan"
	"github.com/hugr-lab/duckbridge/stats"
)

// HolderOptions configures a remote Holder.
type HolderOptions struct {
	// Token is sent as a bearer token on every call when set.
	Token string
	// TLS requires transport security for the token. Without DialOptions
	// the connection is made without TLS.
	TLS bool
	// DialOptions replace the default insecure transport credentials.
	DialOptions []grpc.DialOption
	// Meta is attached to every call for tracing.
	Meta ContextMeta

	Allocator memory.Allocator
	Logger    *slog.Logger
}

// Holder reads a remote factory as an opaque scan.Holder. Filters travel in
// the ticket and the server applies them; every produce is an independent
// DoGet stream.
type Holder struct {
	conn      *grpc.ClientConn
	client    flight.FlightServiceClient
	codec     *TicketCodec
	schema    *arrow.Schema
	rows      int64
	meta      ContextMeta
	allocator memory.Allocator
	logger    *slog.Logger
}

var (
	_ scan.Holder           = (*Holder)(nil)
	_ scan.StatisticsSource = (*Holder)(nil)
)

// Dial connects to a server and fetches its schema and row count.
func Dial(ctx context.Context, address string, opts HolderOptions) (*Holder, error) {
	dialOpts := opts.DialOptions
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	if opts.Token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.BearerCredentials(opts.Token, opts.TLS)))
	}

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("flight: dial %s: %w", address, err)
	}
	codec, err := NewTicketCodec()
	if err != nil {
		conn.Close()
		return nil, err
	}

	h := &Holder{
		conn:      conn,
		client:    flight.NewFlightServiceClient(conn),
		codec:     codec,
		meta:      opts.Meta,
		allocator: opts.Allocator,
		logger:    opts.Logger,
	}
	if h.allocator == nil {
		h.allocator = memory.DefaultAllocator
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	info, err := h.client.GetFlightInfo(outgoing(ctx, h.meta), &flight.FlightDescriptor{Type: flight.DescriptorPATH})
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("flight: get flight info: %w", err)
	}
	h.schema, err = flight.DeserializeSchema(info.GetSchema(), h.allocator)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("flight: schema: %w", err)
	}
	if info.GetTotalRecords() > 0 {
		h.rows = info.GetTotalRecords()
	}
	return h, nil
}

// Schema is the remote factory's full schema.
func (h *Holder) Schema() *arrow.Schema { return h.schema }

// RowCount is the remote row count, or zero when unknown.
func (h *Holder) RowCount() int64 { return h.rows }

// Produce encodes params into a ticket and opens a DoGet stream. The
// stream lives until its token is released.
func (h *Holder) Produce(ctx context.Context, params *flatir.ProduceParams) (*scan.HolderResult, error) {
	ticket, err := h.codec.Encode(params)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(outgoing(ctx, h.meta))
	stream, err := h.client.DoGet(sctx, &flight.Ticket{Ticket: ticket})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("flight: do get: %w", err)
	}
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(h.allocator))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("flight: open stream: %w", err)
	}
	return &scan.HolderResult{Reader: reader, Token: context.CancelFunc(cancel)}, nil
}

// Release ends the DoGet call behind token.
func (h *Holder) Release(token any) error {
	cancel, ok := token.(context.CancelFunc)
	if !ok {
		return fmt.Errorf("flight: unexpected release token %T", token)
	}
	cancel()
	return nil
}

// ColumnStatistics fetches the statistics of column. It returns
// ErrNoStatistics when the server has none.
func (h *Holder) ColumnStatistics(ctx context.Context, column int) (*stats.BaseStatistics, error) {
	body, err := msgpack.Encode(ColumnStatisticsParams{Column: column})
	if err != nil {
		return nil, err
	}
	stream, err := h.client.DoAction(outgoing(ctx, h.meta), &flight.Action{Type: ActionColumnStatistics, Body: body})
	if err != nil {
		return nil, fmt.Errorf("flight: %s: %w", ActionColumnStatistics, err)
	}
	res, err := stream.Recv()
	if status.Code(err) == codes.NotFound {
		return nil, ErrNoStatistics
	}
	if err != nil {
		return nil, fmt.Errorf("flight: %s: %w", ActionColumnStatistics, err)
	}

	r, err := ipc.NewReader(bytes.NewReader(res.GetBody()), ipc.WithAllocator(h.allocator))
	if err != nil {
		return nil, fmt.Errorf("flight: statistics record: %w", err)
	}
	defer r.Release()
	if !r.Next() {
		if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("flight: statistics record: %w", err)
		}
		return nil, fmt.Errorf("flight: statistics record: %w", io.ErrUnexpectedEOF)
	}
	return stats.FromRecord(r.RecordBatch())
}

// Summaries collects every column's statistics for ingestion. Columns the
// server has no statistics for get no summary.
func (h *Holder) Summaries(ctx context.Context) ([]stats.Summary, error) {
	var out []stats.Summary
	for i := range h.schema.NumFields() {
		b, err := h.ColumnStatistics(ctx, i)
		if errors.Is(err, ErrNoStatistics) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, stats.Summarize(i, h.rows, b))
	}
	h.logger.Debug("remote statistics fetched", "columns", len(out))
	return out, nil
}

// Close closes the connection. Open streams fail afterwards.
func (h *Holder) Close() error {
	h.codec.Close()
	return h.conn.Close()
}

// Package flight serves a scan factory over Arrow Flight and reads it back
// on the other side as an opaque holder.
//
// The server side exposes one bound factory: GetSchema and GetFlightInfo
// describe it, DoGet runs a scan whose ticket carries the flat produce
// params, and the column_statistics action returns a column's statistics
// as a one-row record. The client side, Holder, implements scan.Holder and
// scan.StatisticsSource so a remote factory can be bound locally with
// scan.NewHolderFactory.
package flight

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/duckbridge/scan"
)

// Server implements the Flight service handlers for one factory.
// Embeds BaseFlightServer for forward compatibility with protocol changes.
type Server struct {
	flight.BaseFlightServer

	caps      scan.Capabilities
	schema    *arrow.Schema
	codec     *TicketCodec
	allocator memory.Allocator
	logger    *slog.Logger
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Allocator memory.Allocator
	Logger    *slog.Logger
}

// NewServer binds f for serving. The caller keeps ownership of f and
// closes it after the gRPC server stops.
func NewServer(f scan.Factory, opts ServerOptions) (*Server, error) {
	caps, err := scan.Bind(f)
	if err != nil {
		return nil, err
	}
	codec, err := NewTicketCodec()
	if err != nil {
		return nil, err
	}

	allocator := opts.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		caps:      caps,
		schema:    caps.GetSchema(),
		codec:     codec,
		allocator: allocator,
		logger:    logger,
	}, nil
}

// RegisterFlightServer registers the Flight service on the provided gRPC server.
func RegisterFlightServer(grpcServer *grpc.Server, s *Server) {
	flight.RegisterFlightServiceServer(grpcServer, s)
}

// Close releases the ticket codec.
func (s *Server) Close() error {
	return s.codec.Close()
}

package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GetSchema returns the served factory's schema. The descriptor is not
// interpreted; a server exposes exactly one factory.
func (s *Server) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	s.logger.Debug("GetSchema called", "type", desc.GetType(), "trace_id", TraceIDFromContext(ctx))
	return &flight.SchemaResult{Schema: flight.SerializeSchema(s.schema, s.allocator)}, nil
}

// GetFlightInfo describes a full scan of the factory: its schema, its row
// count when known and one endpoint whose ticket carries empty params.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	s.logger.Debug("GetFlightInfo called", "type", desc.GetType(), "trace_id", TraceIDFromContext(ctx))

	ticket, err := s.codec.Encode(nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}
	rows := int64(-1)
	if n, ok := s.caps.GetCardinality(); ok {
		rows = n
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(s.schema, s.allocator),
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{{
			Ticket: &flight.Ticket{Ticket: ticket},
		}},
		TotalRecords: rows,
		TotalBytes:   -1,
	}, nil
}

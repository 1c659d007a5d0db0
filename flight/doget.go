package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/duckbridge/scan"
)

// DoGet runs one scan. The ticket carries the projection and the flat or
// JSON filters; filters are re-translated by the factory, so a server backed
// by a TableFactory evaluates them itself.
func (s *Server) DoGet(ticket *flight.Ticket, out flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(out.Context())

	params, err := s.codec.Decode(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}
	set, err := params.Set()
	if err != nil {
		s.logger.Error("Failed to decode filters", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid filters: %v", err)
	}

	s.logger.Debug("DoGet request",
		"columns", params.ProjectedColumns,
		"filters", len(set),
		"trace_id", TraceIDFromContext(ctx),
	)

	stream, err := s.caps.Produce(ctx, scan.Params{Columns: params.ProjectedColumns, Filters: set})
	if err != nil {
		s.logger.Error("Produce failed", "error", err)
		return toStatus(err)
	}
	reader := stream.RecordReader()
	defer reader.Release()

	writer := flight.NewRecordWriter(out, ipc.WithSchema(reader.Schema()), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	batches, rows := 0, int64(0)
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			s.logger.Debug("DoGet cancelled by client", "batches_sent", batches, "rows_sent", rows)
			return status.Error(codes.Canceled, "request cancelled")
		}
		rec := reader.RecordBatch()
		if err := writer.Write(rec); err != nil {
			s.logger.Error("Failed to write record batch", "batch", batches, "error", err)
			return status.Errorf(codes.Internal, "failed to write batch %d: %v", batches, err)
		}
		batches++
		rows += rec.NumRows()
	}
	if err := reader.Err(); err != nil {
		s.logger.Error("Scan failed", "batch", batches, "error", err)
		return toStatus(err)
	}

	s.logger.Debug("DoGet completed", "batches_sent", batches, "total_rows", rows)
	return nil
}

package flight

import (
	"bytes"
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/duckbridge/internal/msgpack"
	"github.com/hugr-lab/duckbridge/stats"
)

// ColumnStatisticsParams is the msgpack body of the column_statistics
// action. ColumnName, when set, takes precedence over Column.
type ColumnStatisticsParams struct {
	Column     int    `msgpack:"column"`
	ColumnName string `msgpack:"column_name,omitempty"`
}

// DoAction executes server actions.
func (s *Server) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoAction called",
		"type", action.GetType(),
		"body_size", len(action.GetBody()),
		"trace_id", TraceIDFromContext(ctx),
	)

	switch action.GetType() {
	case ActionColumnStatistics:
		return s.handleColumnStatistics(ctx, action, stream)
	default:
		return status.Errorf(codes.Unimplemented, "unknown action type: %s", action.GetType())
	}
}

// ListActions advertises the supported actions.
func (s *Server) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	return stream.Send(&flight.ActionType{
		Type:        ActionColumnStatistics,
		Description: "statistics of one column as a one-row Arrow IPC stream",
	})
}

// handleColumnStatistics answers with the column's statistics encoded by
// stats.Record and written as an IPC stream. Unknown statistics are
// reported as codes.NotFound.
func (s *Server) handleColumnStatistics(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	var params ColumnStatisticsParams
	if err := msgpack.Decode(action.GetBody(), &params); err != nil {
		s.logger.Error("Failed to decode column_statistics parameters", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid column_statistics payload: %v", err)
	}

	column := params.Column
	if params.ColumnName != "" {
		idx := s.schema.FieldIndices(params.ColumnName)
		if len(idx) == 0 {
			return status.Errorf(codes.NotFound, "column %q not found", params.ColumnName)
		}
		column = idx[0]
	}
	if column < 0 || column >= s.schema.NumFields() {
		return status.Errorf(codes.InvalidArgument, "column %d out of range", column)
	}

	b, err := s.caps.GetStatistics(ctx, column)
	if err != nil {
		s.logger.Error("Failed to get column statistics", "column", column, "error", err)
		return toStatus(err)
	}
	if b == nil {
		return status.Errorf(codes.NotFound, "no statistics for column %d", column)
	}

	columnType := s.schema.Field(column).Type
	record, err := stats.Record(s.allocator, columnType, b)
	if err != nil {
		s.logger.Error("Failed to build statistics record", "column", column, "error", err)
		return status.Errorf(codes.Internal, "failed to build statistics: %v", err)
	}
	defer record.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(record.Schema()), ipc.WithAllocator(s.allocator))
	if err := writer.Write(record); err != nil {
		s.logger.Error("Failed to write IPC record", "error", err)
		return status.Errorf(codes.Internal, "failed to serialize statistics: %v", err)
	}
	if err := writer.Close(); err != nil {
		s.logger.Error("Failed to close IPC writer", "error", err)
		return status.Errorf(codes.Internal, "failed to close IPC writer: %v", err)
	}

	if err := stream.Send(&flight.Result{Body: buf.Bytes()}); err != nil {
		s.logger.Error("Failed to send column_statistics response", "error", err)
		return status.Errorf(codes.Internal, "failed to send result: %v", err)
	}
	return nil
}

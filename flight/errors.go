package flight

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/duckbridge/internal/recovery"
	"github.com/hugr-lab/duckbridge/scan"
)

// ActionColumnStatistics is the DoAction type returning one column's
// statistics.
const ActionColumnStatistics = "column_statistics"

// ErrNoStatistics is returned by the client when the server has no
// statistics for a column.
var ErrNoStatistics = errors.New("no statistics for column")

// toStatus maps scan errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scan.ErrUnknownColumn):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, scan.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return recovery.Status(err)
}

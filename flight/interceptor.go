package flight

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/hugr-lab/duckbridge/internal/recovery"
)

// UnaryServerInterceptor enriches the context with tracing metadata and
// turns handler panics into codes.Internal.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = EnrichContextMetadata(ctx)
		resp, err := recovery.RecoverToValue(logger, info.FullMethod, func() (any, error) {
			return handler(ctx, req)
		})
		return resp, recovery.Status(err)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		wrapped := &wrappedServerStream{ServerStream: ss, ctx: EnrichContextMetadata(ss.Context())}
		err := recovery.RecoverToError(logger, info.FullMethod, func() error {
			return handler(srv, wrapped)
		})
		return recovery.Status(err)
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

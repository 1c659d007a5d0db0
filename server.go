package duckbridge

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/hugr-lab/duckbridge/auth"
	"github.com/hugr-lab/duckbridge/flight"
	"github.com/hugr-lab/duckbridge/scan"
)

// NewServer registers Flight service handlers serving f on the provided
// gRPC server.
//
// The caller keeps ownership of f and of grpcServer. NewServer does not
// start the gRPC server; close the returned server after grpcServer stops.
//
// For authentication, create the gRPC server with ServerOptions:
//
//	cfg := duckbridge.ServerConfig{Auth: duckbridge.BearerAuth(validateToken)}
//	grpcServer := grpc.NewServer(duckbridge.ServerOptions(cfg)...)
//	srv, err := duckbridge.NewServer(grpcServer, factory, cfg)
func NewServer(grpcServer *grpc.Server, f scan.Factory, config ServerConfig) (*flight.Server, error) {
	if grpcServer == nil {
		return nil, fmt.Errorf("%w: grpc server is required", ErrInvalidConfig)
	}
	logger := config.logger()

	srv, err := flight.NewServer(f, flight.ServerOptions{
		Allocator: config.allocator(),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	flight.RegisterFlightServer(grpcServer, srv)

	logger.Info("duckbridge Flight server registered",
		"has_auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
	)
	return srv, nil
}

// ServerOptions returns gRPC server options with the authentication and
// panic-recovery interceptors and the configured message size.
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	logger := config.logger()

	unary := []grpc.UnaryServerInterceptor{}
	stream := []grpc.StreamServerInterceptor{}
	if config.Auth != nil {
		unary = append(unary, auth.UnaryServerInterceptor(config.Auth))
		stream = append(stream, auth.StreamServerInterceptor(config.Auth))
	}
	unary = append(unary, flight.UnaryServerInterceptor(logger))
	stream = append(stream, flight.StreamServerInterceptor(logger))

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}

	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}
	return opts
}

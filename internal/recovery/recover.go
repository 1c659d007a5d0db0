// Package recovery keeps panics in caller-supplied holders and release
// callbacks from crossing into the host. A recovered panic becomes a
// *PanicError.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PanicError reports a panic recovered from operation.
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Operation, e.Value)
}

func recovered(logger *slog.Logger, operation string, r any) *PanicError {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Panic recovered",
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
	return &PanicError{Operation: operation, Value: r}
}

// RecoverToError runs fn and converts a panic into a *PanicError.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "Produce", func() error {
//	    res, err = holder.Produce(ctx, params)
//	    return err
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(logger, operation, r)
		}
	}()
	return fn()
}

// RecoverToValue is RecoverToError for functions returning a value. A
// panic yields the zero value.
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result, err = zero, recovered(logger, operation, r)
		}
	}()
	return fn()
}

// Recover runs fn and only logs a panic. Use it for release paths that
// cannot report errors.
func Recover(logger *slog.Logger, operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			recovered(logger, operation, r)
		}
	}()
	fn()
}

// Status converts err for a gRPC response. Errors that already carry a
// status keep it; panics and everything else become codes.Internal.
func Status(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return status.Error(codes.Internal, pe.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

package duckbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/c2h5oh/datasize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hugr-lab/duckbridge/auth"
	"github.com/hugr-lab/duckbridge/internal/metrics"
	"github.com/hugr-lab/duckbridge/stats"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvEnableStatistics    = "DUCKBRIDGE_ENABLE_STATISTICS"
	EnvEnableDistinctCount = "DUCKBRIDGE_ENABLE_DISTINCT_COUNT"
	EnvLogLevel            = "DUCKBRIDGE_LOG_LEVEL"
	EnvChunkSize           = "DUCKBRIDGE_CHUNK_SIZE"
	EnvMaxMessageSize      = "DUCKBRIDGE_MAX_MESSAGE_SIZE"
)

// ErrInvalidConfig indicates a configuration value could not be used.
var ErrInvalidConfig = errors.New("invalid config")

// Config is fixed for the lifetime of the factories built from it.
type Config struct {
	// Statistics selects what statistics factories report.
	// DefaultConfig enables min/max without distinct counts.
	Statistics stats.Options

	// EagerStatistics computes table statistics at bind instead of on
	// first request.
	EagerStatistics bool

	// ChunkSize caps rows per produced batch of a table. 0 keeps the
	// table's own chunks.
	ChunkSize int64

	// Allocator for filtered batches and IPC.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// If Logger is also provided, LogLevel is ignored.
	Logger *slog.Logger

	// LogLevel creates a text logger on stderr with that level when Logger
	// is nil.
	LogLevel *slog.Level

	// Registerer receives the bridge's metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

// DefaultConfig returns statistics enabled, distinct counts off.
func DefaultConfig() Config {
	return Config{Statistics: stats.DefaultOptions()}
}

// ConfigFromEnv starts from DefaultConfig and applies the DUCKBRIDGE_*
// variables that are set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv(EnvEnableStatistics); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvEnableStatistics, err)
		}
		cfg.Statistics.ComputeMinMax = b
	}
	if v, ok := os.LookupEnv(EnvEnableDistinctCount); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvEnableDistinctCount, err)
		}
		cfg.Statistics.ComputeDistinctCount = b
	}
	if v, ok := os.LookupEnv(EnvChunkSize); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("%w: %s: %q", ErrInvalidConfig, EnvChunkSize, v)
		}
		cfg.ChunkSize = n
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvLogLevel, err)
		}
		cfg.LogLevel = &level
	}
	return cfg, nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *c.LogLevel}))
	}
	return slog.Default()
}

func (c Config) allocator() memory.Allocator {
	if c.Allocator != nil {
		return c.Allocator
	}
	return memory.DefaultAllocator
}

func (c Config) metrics() *metrics.Metrics {
	if c.Registerer == nil {
		return nil
	}
	return metrics.New(c.Registerer)
}

// ServerConfig contains configuration for serving a factory over Flight.
type ServerConfig struct {
	Config

	// Auth provides authentication logic.
	// OPTIONAL: If nil, no authentication (all requests allowed).
	Auth auth.Authenticator

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	MaxMessageSize int
}

// MaxMessageSizeFromEnv reads DUCKBRIDGE_MAX_MESSAGE_SIZE, a size such as
// "16MB". It returns 0 when the variable is unset.
func MaxMessageSizeFromEnv() (int, error) {
	v, ok := os.LookupEnv(EnvMaxMessageSize)
	if !ok {
		return 0, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMaxMessageSize, err)
	}
	return int(size.Bytes()), nil
}

// ServerConfigFromEnv combines ConfigFromEnv and MaxMessageSizeFromEnv.
func ServerConfigFromEnv() (ServerConfig, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return ServerConfig{}, err
	}
	size, err := MaxMessageSizeFromEnv()
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{Config: cfg, MaxMessageSize: size}, nil
}

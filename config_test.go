package duckbridge

import (
	"errors"
	"log/slog"
	"testing"
)

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		minMax   bool
		distinct bool
		chunk    int64
		level    *slog.Level
		err      bool
	}{
		{name: "defaults", env: nil, minMax: true},
		{name: "statistics off", env: map[string]string{EnvEnableStatistics: "false"}},
		{name: "distinct on", env: map[string]string{EnvEnableDistinctCount: "1"}, minMax: true, distinct: true},
		{name: "chunk size", env: map[string]string{EnvChunkSize: "1024"}, minMax: true, chunk: 1024},
		{name: "log level", env: map[string]string{EnvLogLevel: "debug"}, minMax: true, level: levelPtr(slog.LevelDebug)},
		{name: "bad bool", env: map[string]string{EnvEnableStatistics: "maybe"}, err: true},
		{name: "negative chunk", env: map[string]string{EnvChunkSize: "-1"}, err: true},
		{name: "bad level", env: map[string]string{EnvLogLevel: "loud"}, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := ConfigFromEnv()
			if tt.err {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Statistics.ComputeMinMax != tt.minMax || cfg.Statistics.ComputeDistinctCount != tt.distinct {
				t.Errorf("unexpected statistics options %+v", cfg.Statistics)
			}
			if cfg.ChunkSize != tt.chunk {
				t.Errorf("expected chunk size %d, got %d", tt.chunk, cfg.ChunkSize)
			}
			switch {
			case tt.level == nil && cfg.LogLevel != nil:
				t.Errorf("unexpected log level %v", *cfg.LogLevel)
			case tt.level != nil && (cfg.LogLevel == nil || *cfg.LogLevel != *tt.level):
				t.Errorf("expected log level %v, got %v", *tt.level, cfg.LogLevel)
			}
		})
	}
}

func TestMaxMessageSizeFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  int
		err   bool
	}{
		{"16MB", 16 << 20, false},
		{"512KB", 512 << 10, false},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(EnvMaxMessageSize, tt.value)
			got, err := MaxMessageSizeFromEnv()
			if (err != nil) != tt.err {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestServerConfigFromEnv(t *testing.T) {
	t.Setenv(EnvMaxMessageSize, "8MB")
	t.Setenv(EnvEnableDistinctCount, "true")

	cfg, err := ServerConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxMessageSize != 8<<20 || !cfg.Statistics.ComputeDistinctCount {
		t.Errorf("unexpected server config %+v", cfg)
	}
	if cfg.Auth != nil {
		t.Error("auth must not come from the environment")
	}
}

func TestServerOptions(t *testing.T) {
	if n := len(ServerOptions(ServerConfig{})); n != 2 {
		t.Errorf("expected the two interceptor chains, got %d options", n)
	}
	if n := len(ServerOptions(ServerConfig{Auth: NoAuth(), MaxMessageSize: 1 << 20})); n != 4 {
		t.Errorf("expected interceptors and message sizes, got %d options", n)
	}
}

func levelPtr(l slog.Level) *slog.Level { return &l }

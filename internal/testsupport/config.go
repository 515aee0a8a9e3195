package testsupport

import (
	"path/filepath"
	"testing"

	"pressline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Generator.APIKey = "test"
	cfg.Generator.BaseURL = "http://127.0.0.1:0"
	cfg.Publisher.BaseURL = "http://127.0.0.1:0"
	cfg.Publisher.Username = "test"
	cfg.Publisher.AppPassword = "test"
	cfg.Pipeline.RetryBaseDelayMS = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithRetryAttempts overrides the retry budget on the test config.
func WithRetryAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.RetryAttempts = attempts
	}
}

// WithMaxConcurrency overrides the batch concurrency limit on the test config.
func WithMaxConcurrency(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Batch.MaxConcurrency = limit
	}
}

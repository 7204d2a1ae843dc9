package testsupport

import (
	"path/filepath"
	"testing"

	"bgjob/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp data directory per
// test. Poll intervals are shortened so worker tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Worker.ID = "test-worker"
	cfgVal.Worker.PollInterval = 1
	cfgVal.Worker.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkerID overrides the worker id on the test config.
func WithWorkerID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.ID = id
	}
}

// WithQueue restricts the worker to one queue.
func WithQueue(queue string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Queue = queue
	}
}

// WithMaxRetries sets the retry budget for new jobs.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.DefaultMaxRetries = n
	}
}

// WithConcurrency sets the number of worker lanes.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Concurrency = n
	}
}

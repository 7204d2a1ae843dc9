package testsupport

import (
	"context"
	"testing"

	"bgjob/internal/config"
	"bgjob/internal/jobs"
	"bgjob/internal/jobtypes"
	"bgjob/internal/logging"
	"bgjob/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewManager builds a jobs.Manager over store with the built-in job types
// registered and a no-op logger.
func NewManager(t testing.TB, cfg *config.Config, store jobs.RecordStore) *jobs.Manager {
	t.Helper()

	registry := jobs.NewRegistry()
	jobtypes.Register(registry)
	return jobs.NewManager(store, registry, logging.NewNop(),
		jobs.WithDefaultMaxRetries(cfg.Jobs.DefaultMaxRetries),
		jobs.WithDefaultTimeEstimate(cfg.Jobs.DefaultTimeEstimate),
		jobs.WithMaxTraversalDepth(cfg.Jobs.MaxTraversalDepth),
		jobs.WithClaimAttempts(cfg.Jobs.ClaimAttempts),
	)
}

// MustEnqueue creates and saves a job, failing the test on error.
func MustEnqueue(t testing.TB, mgr *jobs.Manager, queueName, label, typeName string, dataset any, parentID int64) *jobs.Job {
	t.Helper()

	job, err := mgr.Create(label, typeName, dataset, parentID)
	if err != nil {
		t.Fatalf("Create(%q): %v", label, err)
	}
	if err := job.Save(context.Background(), queueName, ""); err != nil {
		t.Fatalf("Save(%q): %v", label, err)
	}
	return job
}

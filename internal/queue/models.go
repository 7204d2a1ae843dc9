package queue

import "bgjob/internal/jobs"

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	InProgress int
	Failed     int
	Done       int
	Abandoned  int
	Claimed    int
}

var expectedColumns = []string{
	"id",
	"parent_id",
	"title",
	"status",
	"queue",
	"worker_id",
	"payload",
	"created_at",
	"updated_at",
}

func summarize(stats map[jobs.Status]int) HealthSummary {
	var health HealthSummary
	for status, count := range stats {
		health.Total += count
		switch status {
		case jobs.StatusUnqueued, jobs.StatusQueued:
			health.Pending += count
		case jobs.StatusInProgress:
			health.InProgress += count
		case jobs.StatusFailed:
			health.Failed += count
		case jobs.StatusDone:
			health.Done += count
		case jobs.StatusAbandoned:
			health.Abandoned += count
		}
	}
	return health
}

package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"bgjob/internal/jobs"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type jobView struct {
	ID           int64           `json:"id"`
	ParentID     int64           `json:"parent_id,omitempty"`
	Label        string          `json:"label"`
	Type         string          `json:"type"`
	Status       jobs.Status     `json:"status"`
	Queue        string          `json:"queue"`
	WorkerID     string          `json:"worker_id,omitempty"`
	RetryI       int             `json:"retry_i"`
	MaxRetries   int             `json:"max_retries"`
	CanRetry     bool            `json:"can_be_retried"`
	TimeEstimate int             `json:"time_estimate"`
	Dataset      json.RawMessage `json:"dataset,omitempty"`
	History      []string        `json:"history,omitempty"`
	Output       []string        `json:"output,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newJobView(job *jobs.Job, withLogs bool) jobView {
	view := jobView{
		ID:           job.ID(),
		ParentID:     job.ParentID(),
		Label:        job.Label(),
		Type:         job.Type(),
		Status:       job.Status(),
		Queue:        job.Queue(),
		WorkerID:     job.WorkerID(),
		RetryI:       job.RetryCount(),
		MaxRetries:   job.MaxRetries(),
		CanRetry:     job.CanBeRetried(),
		TimeEstimate: job.TimeEstimate(),
		Dataset:      job.Dataset(),
		CreatedAt:    job.CreatedAt().UTC(),
		UpdatedAt:    job.UpdatedAt().UTC(),
	}
	if withLogs {
		view.History = job.History()
		view.Output = job.Output()
	}
	return view
}

func newJobViews(list []*jobs.Job) []jobView {
	views := make([]jobView, 0, len(list))
	for _, job := range list {
		views = append(views, newJobView(job, false))
	}
	return views
}

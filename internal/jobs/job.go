package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeEstimate is the estimated runtime, in seconds, of a new job.
const DefaultTimeEstimate = 20

// Job is the in-memory representation of one job's state, fields, and logs.
// A Job is bound to the Manager that created or loaded it; its lifecycle
// methods persist through that Manager's store.
//
// A Job is not safe for concurrent mutation. Only the worker holding the
// claim should change it.
type Job struct {
	mgr    *Manager
	runner Runner

	id           int64
	parentID     int64
	label        string
	typeName     string
	dataset      json.RawMessage
	history      []string
	output       []string
	queue        string
	workerID     string
	timeEstimate int
	retryI       int
	maxRetries   int
	status       Status
	createdAt    time.Time
	updatedAt    time.Time
}

// ID returns the store-assigned identifier, or 0 when the job is unsaved.
func (j *Job) ID() int64 { return j.id }

// ParentID returns the id of the job that created this one, or 0.
func (j *Job) ParentID() int64 { return j.parentID }

// Label returns the human-friendly description of the job.
func (j *Job) Label() string { return j.label }

// Type returns the registered type name.
func (j *Job) Type() string { return j.typeName }

// Status returns the current lifecycle status.
func (j *Job) Status() Status { return j.status }

// Queue returns the queue name the job was last saved to.
func (j *Job) Queue() string { return j.queue }

// WorkerID returns the id of the worker holding the claim, or "".
func (j *Job) WorkerID() string { return j.workerID }

// IsClaimed reports whether a worker currently owns the job.
func (j *Job) IsClaimed() bool { return j.workerID != "" }

// TimeEstimate returns the estimated runtime in seconds.
func (j *Job) TimeEstimate() int { return j.timeEstimate }

// RetryCount returns how many times the job has failed.
func (j *Job) RetryCount() int { return j.retryI }

// MaxRetries returns the retry budget. Zero disables retries.
func (j *Job) MaxRetries() int { return j.maxRetries }

// CreatedAt returns the store insertion time, zero for unsaved jobs.
func (j *Job) CreatedAt() time.Time { return j.createdAt }

// UpdatedAt returns the time of the last persisted change.
func (j *Job) UpdatedAt() time.Time { return j.updatedAt }

// SetMaxRetries sets the retry budget. Negative values are treated as zero.
// The change is persisted on the next Save.
func (j *Job) SetMaxRetries(n int) {
	if n < 0 {
		n = 0
	}
	j.maxRetries = n
}

// SetTimeEstimate sets the estimated runtime in seconds.
func (j *Job) SetTimeEstimate(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	j.timeEstimate = seconds
}

// Dataset returns the raw JSON payload the job works with.
func (j *Job) Dataset() json.RawMessage {
	if len(j.dataset) == 0 {
		return nil
	}
	cp := make(json.RawMessage, len(j.dataset))
	copy(cp, j.dataset)
	return cp
}

// DecodeDataset unmarshals the dataset into v. An empty dataset leaves v untouched.
func (j *Job) DecodeDataset(v any) error {
	if len(j.dataset) == 0 {
		return nil
	}
	if err := json.Unmarshal(j.dataset, v); err != nil {
		return fmt.Errorf("decode dataset for job #%d: %w", j.id, err)
	}
	return nil
}

// SetDataset replaces the dataset. The job must be saved to persist it.
func (j *Job) SetDataset(v any) error {
	raw, err := encodeDataset(v)
	if err != nil {
		return err
	}
	j.dataset = raw
	return nil
}

// History returns a copy of the history log.
func (j *Job) History() []string { return append([]string(nil), j.history...) }

// Output returns a copy of the output log.
func (j *Job) Output() []string { return append([]string(nil), j.output...) }

// HistoryText joins the history log with sep.
func (j *Job) HistoryText(sep string) string { return strings.Join(j.history, sep) }

// OutputText joins the output log with sep.
func (j *Job) OutputText(sep string) string { return strings.Join(j.output, sep) }

// LogHistory appends a timestamped entry to the job's history.
func (j *Job) LogHistory(msg string) *Job {
	return j.LogHistoryAt(j.now(), msg)
}

// LogHistoryAt appends an entry stamped with ts to the job's history.
func (j *Job) LogHistoryAt(ts time.Time, msg string) *Job {
	j.history = append(j.history, formatLogLine(ts, msg))
	return j
}

// LogOutput appends a timestamped entry to the job's output.
func (j *Job) LogOutput(msg string) *Job {
	return j.LogOutputAt(j.now(), msg)
}

// LogOutputAt appends an entry stamped with ts to the job's output.
func (j *Job) LogOutputAt(ts time.Time, msg string) *Job {
	j.output = append(j.output, formatLogLine(ts, msg))
	return j
}

// Runnable reports whether the job's type resolved to a registered Runner.
func (j *Job) Runnable() bool { return j.runner != nil }

// Run executes the job type's logic.
func (j *Job) Run(ctx context.Context) error {
	if j.runner == nil {
		return fmt.Errorf("%w: %q", ErrUnregisteredJobType, j.typeName)
	}
	return j.runner.Run(ctx, j)
}

// Parent loads the job that created this one. It returns (nil, nil) for
// top-level jobs.
func (j *Job) Parent(ctx context.Context) (*Job, error) {
	if j.parentID == 0 {
		return nil, nil
	}
	return j.mgr.Load(ctx, j.parentID)
}

// Spawn creates an unsaved child job of the given type. The child is saved by
// the caller, typically into the parent's queue.
func (j *Job) Spawn(label, typeName string, dataset any) (*Job, error) {
	if j.id == 0 {
		return nil, fmt.Errorf("spawn %q: parent job is not saved", label)
	}
	return j.mgr.Create(label, typeName, dataset, j.id)
}

func (j *Job) now() time.Time {
	if j.mgr != nil {
		return j.mgr.now()
	}
	return time.Now()
}

func formatLogLine(ts time.Time, msg string) string {
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(time.RFC3339) + "\t" + msg
}

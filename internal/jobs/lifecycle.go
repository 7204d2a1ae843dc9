package jobs

import (
	"context"
	"fmt"

	"bgjob/internal/logging"
)

type jobState struct {
	id         int64
	status     Status
	queue      string
	workerID   string
	retryI     int
	historyLen int
}

func (j *Job) snapshot() jobState {
	return jobState{
		id:         j.id,
		status:     j.status,
		queue:      j.queue,
		workerID:   j.workerID,
		retryI:     j.retryI,
		historyLen: len(j.history),
	}
}

// restore rewinds the job to s, dropping history entries logged since.
func (j *Job) restore(s jobState) {
	j.id = s.id
	j.status = s.status
	j.queue = s.queue
	j.workerID = s.workerID
	j.retryI = s.retryI
	if len(j.history) > s.historyLen {
		j.history = j.history[:s.historyLen:s.historyLen]
	}
}

// CanBeRetried reports whether a failed job may run again. A MaxRetries of
// zero disables retries regardless of the retry counter.
func (j *Job) CanBeRetried() bool {
	return j.status != StatusAbandoned && j.retryI <= j.maxRetries && j.maxRetries != 0
}

// Save persists the job into queue, owned by workerID ("" for unclaimed).
//
// The first save moves an Unqueued job to Queued and emits EventJobAdded.
// Later saves keep the current status. Every call appends a history entry.
// When the store rejects the write, Save returns a *SaveError and the
// in-memory id, status, queue, worker, and history are restored.
func (j *Job) Save(ctx context.Context, queue, workerID string) error {
	prev := j.snapshot()
	previouslyUnqueued := j.status == StatusUnqueued

	if previouslyUnqueued && j.parentID != 0 {
		parent, err := j.mgr.store.Get(ctx, j.parentID)
		if err != nil {
			return &SaveError{JobID: j.id, Err: fmt.Errorf("look up parent #%d: %w", j.parentID, err)}
		}
		if parent == nil {
			return &SaveError{JobID: j.id, Err: fmt.Errorf("%w: #%d", ErrParentNotFound, j.parentID)}
		}
	}

	if previouslyUnqueued {
		j.status = StatusQueued
	}
	j.LogHistory("Job was persisted to the store")
	j.queue = queue
	j.workerID = workerID

	rec, err := j.toRecord()
	if err != nil {
		j.restore(prev)
		return &SaveError{JobID: prev.id, Err: err}
	}

	var id int64
	if j.id == 0 {
		id, err = j.mgr.store.Insert(ctx, rec)
	} else {
		id, err = j.mgr.store.Update(ctx, rec)
	}
	if err != nil {
		j.restore(prev)
		return &SaveError{JobID: prev.id, Err: err}
	}

	now := j.now()
	j.id = id
	if j.createdAt.IsZero() {
		j.createdAt = now
	}
	j.updatedAt = now

	if previouslyUnqueued {
		j.mgr.logger.Info("job queued",
			logging.Int64(logging.FieldJobID, j.id),
			logging.String(logging.FieldQueue, j.queue),
			logging.String(logging.FieldJobType, j.typeName),
			logging.Int64("parent_id", j.parentID),
		)
		j.mgr.emit(Event{Name: EventJobAdded, Job: j, At: now})
	}
	return nil
}

// Begin marks a claimed job as running.
func (j *Job) Begin(ctx context.Context) error {
	if !CanTransition(j.status, StatusInProgress) {
		return transitionError(j.status, StatusInProgress)
	}
	if j.workerID == "" {
		return fmt.Errorf("%w: job #%d must be claimed before it starts", ErrInvalidTransition, j.id)
	}
	prev := j.snapshot()
	j.status = StatusInProgress
	j.LogHistory("Job started by " + j.workerID)
	if err := j.Save(ctx, j.queue, j.workerID); err != nil {
		j.restore(prev)
		return err
	}
	return nil
}

// MarkAsFailed records a failed attempt. cause is only used for the history
// log and may be nil. The job becomes Failed while it can be retried and
// Abandoned otherwise; an abandoned job stays abandoned. The result is
// persisted immediately and the claim is released.
func (j *Job) MarkAsFailed(ctx context.Context, cause error) error {
	switch j.status {
	case StatusUnqueued, StatusDone:
		return transitionError(j.status, StatusFailed)
	}
	prev := j.snapshot()

	if cause != nil {
		j.LogHistory("A problem occurred processing the job: " + cause.Error())
	} else {
		j.LogHistory("A problem occurred processing the job")
	}

	j.retryI++
	if j.CanBeRetried() {
		j.status = StatusFailed
		j.LogHistory(fmt.Sprintf("Job failed in attempt #%d", j.retryI))
	} else {
		j.status = StatusAbandoned
		j.LogHistory(fmt.Sprintf("Job abandoned after attempt #%d", j.retryI))
	}

	if err := j.Save(ctx, j.queue, ""); err != nil {
		j.restore(prev)
		return err
	}

	attrs := []logging.Attr{
		logging.Int64(logging.FieldJobID, j.id),
		logging.String(logging.FieldQueue, j.queue),
		logging.Int("retry_i", j.retryI),
		logging.Int("max_retries", j.maxRetries),
		logging.String("status", string(j.status)),
	}
	if cause != nil {
		attrs = append(attrs, logging.Error(cause))
	}
	if j.status == StatusAbandoned {
		logging.WarnWithContext(j.mgr.logger, "job abandoned", "job_abandoned",
			append(attrs,
				logging.String(logging.FieldErrorHint, "inspect the job history and re-enqueue if needed"),
				logging.String(logging.FieldImpact, "job will not be retried"),
			)...)
	} else {
		j.mgr.logger.Info("job failed; will retry", logging.Args(attrs...)...)
	}
	return nil
}

// MarkAsDone completes the job and releases the claim.
func (j *Job) MarkAsDone(ctx context.Context) error {
	if !CanTransition(j.status, StatusDone) {
		return transitionError(j.status, StatusDone)
	}
	prev := j.snapshot()
	j.status = StatusDone
	j.LogHistory("Job is complete")
	if err := j.Save(ctx, j.queue, ""); err != nil {
		j.restore(prev)
		return err
	}
	j.mgr.logger.Info("job done",
		logging.Int64(logging.FieldJobID, j.id),
		logging.String(logging.FieldQueue, j.queue),
	)
	return nil
}

// Unclaim releases the job from its worker without changing its status, so a
// different worker can pick it up.
func (j *Job) Unclaim(ctx context.Context) error {
	if j.id == 0 {
		return fmt.Errorf("unclaim: %w", ErrJobNotFound)
	}
	prev := j.snapshot()
	j.LogHistory("Job was unclaimed from " + j.workerID)
	if err := j.Save(ctx, j.queue, ""); err != nil {
		j.restore(prev)
		return err
	}
	j.mgr.logger.Info("job unclaimed",
		logging.Int64(logging.FieldJobID, j.id),
		logging.String(logging.FieldWorkerID, prev.workerID),
	)
	return nil
}

// Delete permanently removes the job record and clears its identity fields.
func (j *Job) Delete(ctx context.Context) error {
	if j.id == 0 {
		return &DequeueError{Err: ErrJobNotFound}
	}
	ok, err := j.mgr.store.Delete(ctx, j.id)
	if err != nil {
		return &DequeueError{JobID: j.id, Err: err}
	}
	if !ok {
		return &DequeueError{JobID: j.id, Err: ErrJobNotFound}
	}
	j.mgr.logger.Info("job deleted", logging.Int64(logging.FieldJobID, j.id))
	j.id = 0
	j.workerID = ""
	j.queue = ""
	return nil
}

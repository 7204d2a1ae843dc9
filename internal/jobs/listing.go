package jobs

import (
	"context"
	"errors"
	"fmt"
)

// ListOptions filters List results.
type ListOptions struct {
	// Queue matches the queue name exactly. Empty means every queue.
	Queue string
	// Limit caps the number of jobs returned. Zero means no cap.
	Limit int
	// Statuses defaults to EligibleStatuses when empty.
	Statuses []Status
	// ParentID restricts to children of a job; see Filter.ParentID.
	ParentID *int64
}

// List returns jobs matching opts in insertion order.
func (m *Manager) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = EligibleStatuses()
	}
	records, err := m.store.Query(ctx, Filter{
		ParentID: opts.ParentID,
		Statuses: statuses,
		Queue:    opts.Queue,
		Limit:    opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return m.hydrateAll(records)
}

// Count returns the number of jobs in queue whose status is one of statuses
// (Queued when none are given).
func (m *Manager) Count(ctx context.Context, queue string, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusQueued}
	}
	n, err := m.store.Count(ctx, Filter{Queue: queue, Statuses: statuses})
	if err != nil {
		return 0, fmt.Errorf("count jobs in queue %q: %w", queue, err)
	}
	return n, nil
}

// CountAll returns the number of jobs across every queue whose status is one
// of statuses (Queued when none are given).
func (m *Manager) CountAll(ctx context.Context, statuses ...Status) (int64, error) {
	return m.Count(ctx, "", statuses...)
}

// QueueNames returns every queue name that has held a job. With hideInactive,
// queues whose jobs are all Done or Abandoned are left out.
func (m *Manager) QueueNames(ctx context.Context, hideInactive bool) ([]string, error) {
	var exclude []Status
	if hideInactive {
		exclude = TerminalStatuses()
	}
	names, err := m.store.QueueNames(ctx, exclude)
	if err != nil {
		return nil, fmt.Errorf("list queue names: %w", err)
	}
	return names, nil
}

// Dequeue loads the job with id and deletes it, returning the detached job.
// Records whose payload cannot be decoded are still deleted; the returned job
// then carries only the stored columns.
func (m *Manager) Dequeue(ctx context.Context, id int64) (*Job, error) {
	job, err := m.Load(ctx, id)
	if errors.Is(err, ErrInvalidPayload) {
		job, err = m.loadBare(ctx, id)
	}
	if err != nil {
		return nil, &DequeueError{JobID: id, Err: err}
	}
	if err := job.Delete(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

func (m *Manager) loadBare(ctx context.Context, id int64) (*Job, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job #%d: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("load job #%d: %w", id, ErrJobNotFound)
	}
	return m.bare(rec), nil
}

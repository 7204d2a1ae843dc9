package jobs

import (
	"context"
	"errors"
	"fmt"

	"bgjob/internal/logging"
)

// Next returns the job a worker should run next from queue, or from any
// queue when queue is empty. It returns (nil, nil) when nothing is eligible.
//
// The oldest eligible top-level job is taken first, then the search descends
// through its oldest eligible child until a job without eligible children is
// reached, so a parent's pending descendants are exhausted before any other
// top-level job is offered. When no top-level job is eligible, the oldest
// eligible job of any parentage is returned, which covers orphaned children.
//
// A selected record whose payload cannot be decoded is marked Abandoned and
// the search starts over, so one corrupt row never blocks its queue.
//
// Next only selects. Use Claim (or NextClaimed) to take ownership.
func (m *Manager) Next(ctx context.Context, queue string) (*Job, error) {
	return m.next(ctx, Filter{Statuses: EligibleStatuses(), Queue: queue})
}

func (m *Manager) next(ctx context.Context, base Filter) (*Job, error) {
	for {
		rec, err := m.selectRecord(ctx, base)
		if err != nil || rec == nil {
			return nil, err
		}
		job, err := m.hydrate(rec)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrInvalidPayload) {
			return nil, err
		}
		if err := m.setAside(ctx, rec, err); err != nil {
			return nil, err
		}
	}
}

func (m *Manager) selectRecord(ctx context.Context, base Filter) (*Record, error) {
	top := base
	top.ParentID = TopLevel()
	candidate, err := m.first(ctx, top)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return m.first(ctx, base)
	}

	visited := map[int64]struct{}{candidate.ID: {}}
	for depth := 0; ; depth++ {
		probe := base
		probe.ParentID = ChildrenOf(candidate.ID)
		child, err := m.first(ctx, probe)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return candidate, nil
		}
		if _, seen := visited[child.ID]; seen {
			return nil, fmt.Errorf("%w: job #%d reached twice", ErrTraversalCycle, child.ID)
		}
		if depth >= m.maxDepth {
			return nil, fmt.Errorf("%w: stopped below job #%d after %d levels", ErrTraversalLimit, candidate.ID, depth)
		}
		visited[child.ID] = struct{}{}
		candidate = child
	}
}

// setAside abandons a record that can no longer be decoded. The raw payload
// is kept so the row can still be inspected and deleted.
func (m *Manager) setAside(ctx context.Context, rec *Record, cause error) error {
	broken := *rec
	broken.Status = StatusAbandoned
	broken.WorkerID = ""
	if _, err := m.store.Update(ctx, &broken); err != nil {
		return fmt.Errorf("abandon unreadable job #%d: %w", rec.ID, err)
	}
	logging.ErrorWithContext(m.logger, "unreadable job abandoned", "job_unreadable",
		logging.Int64(logging.FieldJobID, rec.ID),
		logging.String(logging.FieldQueue, rec.Queue),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "inspect the stored payload, then delete the job and enqueue it again"),
		logging.String(logging.FieldImpact, "job will not run"),
	)
	return nil
}

func (m *Manager) first(ctx context.Context, filter Filter) (*Record, error) {
	filter.Limit = 1
	records, err := m.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query next job: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

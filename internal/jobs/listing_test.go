package jobs_test

import (
	"context"
	"errors"
	"testing"

	"bgjob/internal/jobs"
)

func TestListDefaultsToEligible(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	a := mustSave(t, mgr, "a", "q", 0)
	mustSave(t, mgr, "b", "q", 0)
	mustSave(t, mgr, "c", "other", 0)
	if err := a.MarkAsDone(ctx); err != nil {
		t.Fatalf("MarkAsDone failed: %v", err)
	}

	list, err := mgr.List(ctx, jobs.ListOptions{Queue: "q"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].Label() != "b" {
		t.Fatalf("unexpected list %v", list)
	}

	all, err := mgr.List(ctx, jobs.ListOptions{Statuses: jobs.AllStatuses()})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}

	limited, err := mgr.List(ctx, jobs.ListOptions{Statuses: jobs.AllStatuses(), Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Label() != "a" {
		t.Fatalf("unexpected limited list %v", limited)
	}
}

func TestListChildren(t *testing.T) {
	mgr, _ := newTestManager(t)
	parent := mustSave(t, mgr, "p", "q", 0)
	mustSave(t, mgr, "c1", "q", parent.ID())
	mustSave(t, mgr, "c2", "q", parent.ID())

	children, err := mgr.List(context.Background(), jobs.ListOptions{ParentID: jobs.ChildrenOf(parent.ID())})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(children) != 2 || children[0].Label() != "c1" || children[1].Label() != "c2" {
		t.Fatalf("unexpected children %v", children)
	}
}

func TestCount(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	mustSave(t, mgr, "a", "q", 0)
	b := mustSave(t, mgr, "b", "q", 0)
	mustSave(t, mgr, "c", "other", 0)
	if err := b.MarkAsFailed(ctx, nil); err != nil {
		t.Fatalf("MarkAsFailed failed: %v", err)
	}

	queued, err := mgr.Count(ctx, "q")
	if err != nil || queued != 1 {
		t.Fatalf("Count(q) = (%d, %v), want 1", queued, err)
	}
	failed, err := mgr.Count(ctx, "q", jobs.StatusFailed, jobs.StatusQueued)
	if err != nil || failed != 2 {
		t.Fatalf("Count(q, failed|queued) = (%d, %v), want 2", failed, err)
	}
	global, err := mgr.CountAll(ctx)
	if err != nil || global != 2 {
		t.Fatalf("CountAll = (%d, %v), want 2", global, err)
	}
}

func TestQueueNamesHidesInactive(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	mustSave(t, mgr, "a", "active", 0)
	done := mustSave(t, mgr, "b", "finished", 0)
	if err := done.MarkAsDone(ctx); err != nil {
		t.Fatalf("MarkAsDone failed: %v", err)
	}

	all, err := mgr.QueueNames(ctx, false)
	if err != nil {
		t.Fatalf("QueueNames failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both queues, got %v", all)
	}
	active, err := mgr.QueueNames(ctx, true)
	if err != nil {
		t.Fatalf("QueueNames failed: %v", err)
	}
	if len(active) != 1 || active[0] != "active" {
		t.Fatalf("expected only active queue, got %v", active)
	}
}

func TestDequeueByID(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()
	job := mustSave(t, mgr, "x", "q", 0)

	removed, err := mgr.Dequeue(ctx, job.ID())
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if removed.ID() != 0 || removed.Label() != "x" {
		t.Fatalf("unexpected removed job: id=%d label=%q", removed.ID(), removed.Label())
	}
	if _, err := mgr.Dequeue(ctx, job.ID()); !errors.Is(err, jobs.ErrJobNotFound) || !errors.Is(err, jobs.ErrDequeueJob) {
		t.Fatalf("expected not-found dequeue error, got %v", err)
	}
}

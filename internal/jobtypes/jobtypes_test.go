package jobtypes_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"bgjob/internal/jobs"
	"bgjob/internal/jobtypes"
	"bgjob/internal/testsupport"
)

func newManager(t *testing.T) *jobs.Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.NewManager(t, cfg, testsupport.MustOpenStore(t, cfg))
}

func TestRegisterAddsBuiltins(t *testing.T) {
	reg := jobs.NewRegistry()
	jobtypes.Register(reg)
	got := strings.Join(reg.Names(), ",")
	if got != "echo,fail,sleep,spawn" {
		t.Fatalf("unexpected registered types %q", got)
	}
}

func TestEchoLogsMessage(t *testing.T) {
	mgr := newManager(t)
	job := testsupport.MustEnqueue(t, mgr, "q", "greet", jobtypes.Echo, jobtypes.EchoData{Message: "hi there"}, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasSuffix(job.OutputText(""), "\thi there") {
		t.Fatalf("unexpected output %q", job.OutputText(""))
	}
}

func TestEchoFallsBackToLabel(t *testing.T) {
	mgr := newManager(t)
	job := testsupport.MustEnqueue(t, mgr, "q", "label only", jobtypes.Echo, nil, 0)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasSuffix(job.OutputText(""), "\tlabel only") {
		t.Fatalf("unexpected output %q", job.OutputText(""))
	}
}

func TestSleepHonoursContext(t *testing.T) {
	mgr := newManager(t)
	job := testsupport.MustEnqueue(t, mgr, "q", "nap", jobtypes.Sleep, jobtypes.SleepData{Duration: "1h"}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := job.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	short := testsupport.MustEnqueue(t, mgr, "q", "blink", jobtypes.Sleep, jobtypes.SleepData{Seconds: 0.01}, 0)
	if err := short.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestSleepRejectsBadDuration(t *testing.T) {
	mgr := newManager(t)
	job := testsupport.MustEnqueue(t, mgr, "q", "nap", jobtypes.Sleep, jobtypes.SleepData{Duration: "soon"}, 0)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error for unparsable duration")
	}
}

func TestFailReturnsError(t *testing.T) {
	mgr := newManager(t)
	job := testsupport.MustEnqueue(t, mgr, "q", "doomed", jobtypes.Fail, jobtypes.FailData{Message: "disk full"}, 0)
	err := job.Run(context.Background())
	if !errors.Is(err, jobtypes.ErrRequestedFailure) || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSpawnCreatesChildrenInParentQueue(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	parent := testsupport.MustEnqueue(t, mgr, "batch", "fan out", jobtypes.Spawn, jobtypes.SpawnData{
		Count:   3,
		Type:    jobtypes.Echo,
		Dataset: json.RawMessage(`{"message":"child"}`),
	}, 0)

	if err := parent.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	children, err := mgr.List(ctx, jobs.ListOptions{ParentID: jobs.ChildrenOf(parent.ID())})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for _, child := range children {
		if child.Queue() != "batch" || child.Type() != jobtypes.Echo || child.Status() != jobs.StatusQueued {
			t.Fatalf("unexpected child: queue=%q type=%q status=%s", child.Queue(), child.Type(), child.Status())
		}
	}
	if children[0].Label() != "fan out / 1" {
		t.Fatalf("unexpected child label %q", children[0].Label())
	}

	next, err := mgr.Next(ctx, "batch")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if next == nil || next.ID() != children[0].ID() {
		t.Fatalf("expected first child to be next, got %v", next)
	}
}

func TestSpawnRejectsBadCount(t *testing.T) {
	mgr := newManager(t)
	job := testsupport.MustEnqueue(t, mgr, "q", "none", jobtypes.Spawn, jobtypes.SpawnData{Count: 0}, 0)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestSpawnResumesAfterSavedChildren(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	parent := testsupport.MustEnqueue(t, mgr, "batch", "fan out", jobtypes.Spawn, jobtypes.SpawnData{
		Count:   3,
		Type:    jobtypes.Echo,
		Spawned: 2,
	}, 0)

	if err := parent.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	children, err := mgr.List(ctx, jobs.ListOptions{ParentID: jobs.ChildrenOf(parent.ID())})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(children) != 1 || children[0].Label() != "fan out / 3" {
		t.Fatalf("expected only the third child, got %d children", len(children))
	}

	// A failed attempt persists the progress, so the retry spawns nothing new.
	if err := parent.MarkAsFailed(ctx, errors.New("later step failed")); err != nil {
		t.Fatalf("MarkAsFailed failed: %v", err)
	}
	reloaded, err := mgr.Load(ctx, parent.ID())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var data jobtypes.SpawnData
	if err := reloaded.DecodeDataset(&data); err != nil {
		t.Fatalf("DecodeDataset failed: %v", err)
	}
	if data.Spawned != 3 {
		t.Fatalf("expected spawned=3 to be persisted, got %d", data.Spawned)
	}
	if err := reloaded.Run(ctx); err != nil {
		t.Fatalf("retry Run failed: %v", err)
	}
	if n, err := mgr.Count(ctx, "batch", jobs.StatusQueued); err != nil || n != 1 {
		t.Fatalf("expected one queued child after retry, got (%d, %v)", n, err)
	}
}

func TestSpawnRejectsBadProgress(t *testing.T) {
	mgr := newManager(t)
	job := testsupport.MustEnqueue(t, mgr, "q", "over", jobtypes.Spawn, jobtypes.SpawnData{Count: 1, Spawned: 2}, 0)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when spawned exceeds count")
	}
}

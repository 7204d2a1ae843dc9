package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"bgjob/internal/jobs"
	"bgjob/internal/testsupport"
)

func TestQueueListFilters(t *testing.T) {
	env := setupCLITestEnv(t)
	first := testsupport.MustEnqueue(t, env.mgr, "alpha", "first", "echo", nil, 0)
	testsupport.MustEnqueue(t, env.mgr, "beta", "second", "echo", nil, 0)
	testsupport.MustEnqueue(t, env.mgr, "alpha", "child", "echo", nil, first.ID())
	done := testsupport.MustEnqueue(t, env.mgr, "alpha", "finished", "echo", nil, 0)
	if err := done.MarkAsDone(context.Background()); err != nil {
		t.Fatalf("MarkAsDone: %v", err)
	}

	out := env.run(t, "queue", "list")
	requireContains(t, out, "first")
	requireContains(t, out, "second")
	if strings.Contains(out, "finished") {
		t.Fatalf("done job listed without --all:\n%s", out)
	}

	out = env.run(t, "queue", "list", "--all")
	requireContains(t, out, "finished")

	out = env.run(t, "queue", "list", "--queue", "alpha", "--top-level", "--json")
	var views []jobView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(views) != 1 || views[0].Label != "first" {
		t.Fatalf("unexpected views %+v", views)
	}

	out = env.run(t, "queue", "list", "--parent", "1", "--json")
	views = nil
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(views) != 1 || views[0].Label != "child" {
		t.Fatalf("unexpected children %+v", views)
	}

	out = env.run(t, "queue", "list", "--status", "done", "--limit", "5")
	requireContains(t, out, "finished")

	if _, _, err := runCLI(t, []string{"queue", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.run(t, "queue", "list")
	requireContains(t, out, "No jobs found")
}

func TestQueueCountAndNames(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustEnqueue(t, env.mgr, "alpha", "a1", "echo", nil, 0)
	testsupport.MustEnqueue(t, env.mgr, "alpha", "a2", "echo", nil, 0)
	gone := testsupport.MustEnqueue(t, env.mgr, "beta", "b1", "echo", nil, 0)
	if err := gone.MarkAsDone(context.Background()); err != nil {
		t.Fatalf("MarkAsDone: %v", err)
	}

	if out := env.run(t, "queue", "count", "--queue", "alpha"); strings.TrimSpace(out) != "2" {
		t.Fatalf("alpha count = %q, want 2", out)
	}
	if out := env.run(t, "queue", "count"); strings.TrimSpace(out) != "2" {
		t.Fatalf("global queued count = %q, want 2", out)
	}
	if out := env.run(t, "queue", "count", "--status", "queued,done"); strings.TrimSpace(out) != "3" {
		t.Fatalf("queued+done count = %q, want 3", out)
	}

	if out := env.run(t, "queue", "names"); out != "alpha\nbeta\n" {
		t.Fatalf("names = %q", out)
	}
	if out := env.run(t, "queue", "names", "--active"); out != "alpha\n" {
		t.Fatalf("active names = %q", out)
	}
}

func TestQueueStatsAndHealth(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustEnqueue(t, env.mgr, "alpha", "a1", "echo", nil, 0)
	job := testsupport.MustEnqueue(t, env.mgr, "alpha", "a2", "echo", nil, 0)
	if err := job.MarkAsFailed(context.Background(), nil); err != nil {
		t.Fatalf("MarkAsFailed: %v", err)
	}

	out := env.run(t, "queue", "stats")
	requireContains(t, out, "Queued")
	requireContains(t, out, "Failed")

	out = env.run(t, "queue", "stats", "--json")
	var stats map[string]int
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if stats[string(jobs.StatusQueued)] != 1 || stats[string(jobs.StatusFailed)] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}

	out = env.run(t, "queue", "health")
	requireContains(t, out, "== Database ==")
	requireContains(t, out, "Integrity:")
	requireContains(t, out, "[OK] yes")
	requireContains(t, out, "Failed:")
	requireContains(t, out, "[WARN] 1")
	requireContains(t, out, "Data directory:")
	requireContains(t, out, "(read/write ok)")
}

func TestStatusTitle(t *testing.T) {
	if got := statusTitle(jobs.StatusInProgress); got != "In Progress" {
		t.Fatalf("statusTitle(in_progress) = %q", got)
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if check := checkDirectoryAccess("Data", dir); !check.Passed {
		t.Fatalf("expected temp dir to pass: %+v", check)
	}
	missing := checkDirectoryAccess("Data", dir+"/missing")
	if missing.Passed {
		t.Fatal("expected missing directory to fail")
	}
	requireContains(t, missing.Detail, "does not exist")
}

func TestBuildStatusRowsOrdersByLifecycle(t *testing.T) {
	rows := buildStatusRows(map[jobs.Status]int{
		jobs.StatusDone:   2,
		jobs.StatusQueued: 1,
		"mystery":         4,
	})
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][0] != "Queued" || rows[1][0] != "Done" || rows[2][0] != "Mystery" {
		t.Fatalf("unexpected order %v", rows)
	}
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bgjob/internal/config"
	"bgjob/internal/jobs"
	"bgjob/internal/queue"
	"bgjob/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	mgr        *jobs.Manager
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("BGJOB_DATA_DIR", "")
	t.Setenv("BGJOB_WORKER_ID", "")
	t.Setenv("BGJOB_QUEUE", "")

	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(homeDir, ".config", "bgjob", "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		mgr:        testsupport.NewManager(t, cfg, store),
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("bgjob %s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

func (env *cliTestEnv) load(t *testing.T, id int64) *jobs.Job {
	t.Helper()
	job, err := env.mgr.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load(%d): %v", id, err)
	}
	return job
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\nfull output:\n%s", substr, output)
	}
}

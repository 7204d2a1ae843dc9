package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bgjob/internal/config"
	"bgjob/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerRendersJobSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "worker")
	logger.Info("job done",
		logging.Int64(logging.FieldJobID, 42),
		logging.String(logging.FieldQueue, "emails"),
		logging.Int("retry_i", 1),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"INFO", "[worker]", "Job #42 · emails", "job done", "retry_i=1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "job_id=") {
		t.Fatalf("expected job_id folded into subject, got %q", line)
	}
}

func TestJSONLoggerFieldNames(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Warn("claim lost", logging.String(logging.FieldWorkerID, "w-1"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode json log line %q: %v", content, err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected level warn, got %v", entry["level"])
	}
	if entry["msg"] != "claim lost" {
		t.Fatalf("expected msg, got %v", entry["msg"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key in %v", entry)
	}
	if entry[logging.FieldWorkerID] != "w-1" {
		t.Fatalf("expected worker_id, got %v", entry[logging.FieldWorkerID])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Error("shown", logging.Error(errors.New("boom")))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", content)
	}
	if !strings.Contains(string(content), "error=boom") {
		t.Fatalf("expected error attr, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "job abandoned", "job_abandoned", logging.String(logging.FieldImpact, "not retried"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "job_abandoned" {
		t.Fatalf("expected event_type, got %v", entry)
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error_hint, got %v", entry)
	}
	if entry[logging.FieldImpact] != "not retried" {
		t.Fatalf("expected caller impact preserved, got %v", entry[logging.FieldImpact])
	}
}

func TestContextFields(t *testing.T) {
	ctx := logging.WithWorkerID(logging.WithJobID(context.Background(), 7), "w-9")
	fields := logging.ContextFields(ctx)
	if !logging.HasAttrKey(fields, logging.FieldJobID) || !logging.HasAttrKey(fields, logging.FieldWorkerID) {
		t.Fatalf("expected job and worker fields, got %v", fields)
	}
	if got := logging.ContextFields(context.Background()); len(got) != 0 {
		t.Fatalf("expected no fields for bare context, got %v", got)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should not be enabled")
	}
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"bgjob/internal/config"
)

func openTestStore(t *testing.T, busyTimeoutMS int) (*Store, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Store.BusyTimeoutMS = busyTimeoutMS
	s, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, &cfg
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	s, _ := openTestStore(t, 1234)
	ctx := context.Background()

	// Holding both connections forces the pool to open a second one.
	first, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	defer first.Close()
	second, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var timeout, foreignKeys int
		var journal string
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: busy_timeout: %v", i, err)
		}
		if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
			t.Fatalf("conn %d: foreign_keys: %v", i, err)
		}
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal); err != nil {
			t.Fatalf("conn %d: journal_mode: %v", i, err)
		}
		if timeout != 1234 || foreignKeys != 1 || !strings.EqualFold(journal, "wal") {
			t.Fatalf("conn %d: busy_timeout=%d foreign_keys=%d journal_mode=%s", i, timeout, foreignKeys, journal)
		}
	}
}

func TestOpenStampsAndChecksSchemaVersion(t *testing.T) {
	s, cfg := openTestStore(t, 100)
	ctx := context.Background()

	version, err := s.userVersion(ctx)
	if err != nil || version != schemaVersion {
		t.Fatalf("userVersion = (%d, %v)", version, err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA user_version = 7"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := Open(cfg); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestBusyRetryReturnsOtherErrorsImmediately(t *testing.T) {
	boom := errors.New("constraint failed")
	calls := 0
	err := defaultBusyRetry.run(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected one call returning boom, got %d calls and %v", calls, err)
	}
	if isBusy(nil) || isBusy(boom) {
		t.Fatal("expected non-sqlite errors not to count as busy")
	}
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"bgjob/internal/config"
)

// Store keeps job records in a single SQLite database file. It implements
// jobs.RecordStore and is safe for use by several workers at once.
type Store struct {
	db    *sql.DB
	path  string
	now   func() time.Time
	retry busyRetry
}

// busyRetry re-runs writes that SQLite rejected because another connection
// held the lock past busy_timeout.
type busyRetry struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}

var defaultBusyRetry = busyRetry{attempts: 5, first: 10 * time.Millisecond, ceiling: 200 * time.Millisecond}

func (r busyRetry) run(ctx context.Context, op func() error) error {
	wait := r.first
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !isBusy(err) || attempt >= r.attempts {
			return err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, r.ceiling)
	}
}

// isBusy reports whether err carries SQLITE_BUSY or SQLITE_LOCKED, including
// their extended result codes.
func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := s.retry.run(ctx, func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// dataSourceName builds a DSN whose pragmas the driver applies to every
// pooled connection, not only the first.
func dataSourceName(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout("+strconv.Itoa(busyTimeoutMS)+")")
	return "file:" + path + "?" + q.Encode()
}

// Open creates or opens the job database at cfg.DBPath() and prepares its schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	path := cfg.DBPath()
	db, err := sql.Open("sqlite", dataSourceName(path, cfg.Store.BusyTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("open job database %s: %w", path, err)
	}

	s := &Store{db: db, path: path, now: time.Now, retry: defaultBusyRetry}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close releases the database handle. Closing a nil Store is a no-op.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bgjob/internal/jobs"
)

var _ jobs.RecordStore = (*Store)(nil)

// ErrRecordNotFound is returned by Update when no row has the record's id.
var ErrRecordNotFound = errors.New("job record not found")

// Insert stores a new record and returns its assigned id.
func (s *Store) Insert(ctx context.Context, rec *jobs.Record) (int64, error) {
	if rec == nil {
		return 0, errors.New("insert: nil record")
	}
	now := s.now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (parent_id, title, status, queue, worker_id, payload, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ParentID,
		rec.Title,
		string(rec.Status),
		rec.Queue,
		rec.WorkerID,
		rec.Payload,
		formatTime(created),
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetch job id: %w", err)
	}
	return id, nil
}

// Update overwrites every column of the record with the same id.
func (s *Store) Update(ctx context.Context, rec *jobs.Record) (int64, error) {
	if rec == nil || rec.ID == 0 {
		return 0, errors.New("update: record has no id")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET parent_id = ?, title = ?, status = ?, queue = ?, worker_id = ?, payload = ?, updated_at = ?
         WHERE id = ?`,
		rec.ParentID,
		rec.Title,
		string(rec.Status),
		rec.Queue,
		rec.WorkerID,
		rec.Payload,
		formatTime(s.now()),
		rec.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("update job #%d: %w", rec.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update job #%d: %w", rec.ID, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("update job #%d: %w", rec.ID, ErrRecordNotFound)
	}
	return rec.ID, nil
}

// Get fetches a record by id. It returns (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id int64) (*jobs.Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM jobs WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job #%d: %w", id, err)
	}
	return rec, nil
}

// Query returns records matching filter, oldest first.
func (s *Store) Query(ctx context.Context, filter jobs.Filter) ([]*jobs.Record, error) {
	ctx = ensureContext(ctx)
	where, args := whereClause(filter)
	query := "SELECT " + recordColumns + " FROM jobs" + where + " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var records []*jobs.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return records, nil
}

// Delete removes the record with id and reports whether one existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete job #%d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete job #%d: %w", id, err)
	}
	return affected > 0, nil
}

// Count returns the number of records matching filter. Limit is ignored.
func (s *Store) Count(ctx context.Context, filter jobs.Filter) (int64, error) {
	ctx = ensureContext(ctx)
	where, args := whereClause(filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// QueueNames returns the distinct queue tags, sorted, of records whose status
// is not in excludeStatuses.
func (s *Store) QueueNames(ctx context.Context, excludeStatuses []jobs.Status) ([]string, error) {
	ctx = ensureContext(ctx)
	query := "SELECT DISTINCT queue FROM jobs"
	var args []any
	if len(excludeStatuses) > 0 {
		query += " WHERE status NOT IN (" + makePlaceholders(len(excludeStatuses)) + ")"
		args = statusArgs(excludeStatuses)
	}
	query += " ORDER BY queue ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan queue name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Claim assigns the record to workerID when it is unclaimed and its status is
// one of eligible. The check and the write are one statement, so concurrent
// claimers cannot both succeed.
func (s *Store) Claim(ctx context.Context, id int64, workerID string, eligible []jobs.Status) (bool, error) {
	if workerID == "" {
		return false, errors.New("claim: worker id is required")
	}
	if len(eligible) == 0 {
		return false, nil
	}
	args := []any{workerID, formatTime(s.now()), id}
	args = append(args, statusArgs(eligible)...)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET worker_id = ?, updated_at = ?
         WHERE id = ? AND worker_id = '' AND status IN (`+makePlaceholders(len(eligible))+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("claim job #%d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job #%d: %w", id, err)
	}
	return affected == 1, nil
}

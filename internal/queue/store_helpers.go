package queue

import (
	"errors"
	"strings"
	"time"

	"bgjob/internal/jobs"
)

const recordColumns = "id, parent_id, title, status, queue, worker_id, payload, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*jobs.Record, error) {
	var (
		rec        jobs.Record
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.ParentID,
		&rec.Title,
		&status,
		&rec.Queue,
		&rec.WorkerID,
		&rec.Payload,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.Status = jobs.Status(status)
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []jobs.Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return args
}

// whereClause renders filter as a WHERE clause (without LIMIT) and its args.
func whereClause(filter jobs.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.ParentID != nil {
		conds = append(conds, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.Queue != "" {
		conds = append(conds, "queue = ?")
		args = append(args, filter.Queue)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		args = append(args, statusArgs(filter.Statuses)...)
	}
	if filter.Unclaimed {
		conds = append(conds, "worker_id = ''")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

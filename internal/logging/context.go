package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldJobType is the standardized structured logging key for registered job type names.
	FieldJobType = "job_type"
	// FieldQueue is the standardized structured logging key for queue names.
	FieldQueue = "queue"
	// FieldWorkerID is the standardized structured logging key for worker identifiers.
	FieldWorkerID = "worker_id"
	// FieldEventType classifies a log line for filtering (job_abandoned, claim_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	jobIDKey contextKey = iota
	workerIDKey
)

// WithJobID stores the job id on ctx for later log enrichment.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// WithWorkerID stores the worker id on ctx for later log enrichment.
func WithWorkerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workerIDKey, id)
}

// JobIDFromContext returns the job id stored by WithJobID.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(jobIDKey).(int64)
	return id, ok && id != 0
}

// WorkerIDFromContext returns the worker id stored by WithWorkerID.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(workerIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := JobIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldJobID, id))
	}
	if worker, ok := WorkerIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorkerID, worker))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

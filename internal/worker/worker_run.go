package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"bgjob/internal/jobs"
	"bgjob/internal/logging"
)

func (w *Worker) runLane(ctx context.Context, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.runOnce(ctx, logger)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.handleNextJobError(ctx, logger, err)
			continue
		}
		if !processed {
			w.waitForJobOrShutdown(ctx)
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was
// processed. The job's own failure is recorded on the job, not returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	return w.runOnce(ctx, w.logger)
}

// Drain processes jobs until none are eligible or ctx is cancelled, and
// returns how many were processed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		processed, err := w.runOnce(ctx, w.logger)
		if err != nil {
			return count, err
		}
		if !processed {
			return count, nil
		}
		count++
	}
}

func (w *Worker) runOnce(ctx context.Context, logger *slog.Logger) (bool, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	job, err := w.mgr.NextClaimed(ctx, w.queue, w.id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if err := w.process(ctx, logger, job); err != nil {
		return true, err
	}
	return true, nil
}

func (w *Worker) process(ctx context.Context, logger *slog.Logger, job *jobs.Job) error {
	ctx = logging.WithJobID(logging.WithWorkerID(ctx, w.id), job.ID())
	logger = logger.With(
		logging.Int64(logging.FieldJobID, job.ID()),
		logging.String(logging.FieldJobType, job.Type()),
	)
	// Outcomes are written even after shutdown begins.
	reportCtx := context.WithoutCancel(ctx)

	if err := job.Begin(reportCtx); err != nil {
		if unclaimErr := job.Unclaim(reportCtx); unclaimErr != nil {
			logger.Error("release claim after failed start",
				logging.Error(unclaimErr),
				logging.String(logging.FieldEventType, "job_unclaim_failed"),
				logging.String(logging.FieldErrorHint, "run 'bgjob unclaim' for this job"),
			)
		}
		return fmt.Errorf("start job #%d: %w", job.ID(), err)
	}

	logger.Info("job started",
		logging.String("label", job.Label()),
		logging.Int("attempt", job.RetryCount()+1),
	)
	w.metrics.jobStarted()
	started := time.Now()
	runErr := runSafely(ctx, job)
	elapsed := time.Since(started)
	w.processed.Add(1)

	if runErr == nil {
		if err := job.MarkAsDone(reportCtx); err != nil {
			w.metrics.jobFinished(job.Queue(), job.Type(), "error", elapsed)
			return fmt.Errorf("record completion of job #%d: %w", job.ID(), err)
		}
		w.metrics.jobFinished(job.Queue(), job.Type(), string(job.Status()), elapsed)
		w.succeeded.Add(1)
		logger.Info("job succeeded", logging.Duration("elapsed", elapsed))
		return nil
	}

	w.failed.Add(1)
	if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		runErr = fmt.Errorf("interrupted by worker shutdown: %w", runErr)
	}
	if err := job.MarkAsFailed(reportCtx, runErr); err != nil {
		w.metrics.jobFinished(job.Queue(), job.Type(), "error", elapsed)
		return fmt.Errorf("record failure of job #%d: %w", job.ID(), err)
	}
	w.metrics.jobFinished(job.Queue(), job.Type(), string(job.Status()), elapsed)
	logger.Info("job run failed",
		logging.Error(runErr),
		logging.Duration("elapsed", elapsed),
		logging.String("status", string(job.Status())),
	)
	return nil
}

func runSafely(ctx context.Context, job *jobs.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return job.Run(ctx)
}

func (w *Worker) handleNextJobError(ctx context.Context, logger *slog.Logger, err error) {
	msg := err.Error()
	w.lastError.Store(&msg)
	w.metrics.pollFailed()
	logger.Error("worker poll failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "job_poll_failed"),
		logging.String(logging.FieldErrorHint, "check job database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(w.errorRetryInterval):
	}
}

func (w *Worker) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-w.wake:
	case <-time.After(w.pollInterval):
	}
}

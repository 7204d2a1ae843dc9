package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"bgjob/internal/config"
	"bgjob/internal/jobs"
	"bgjob/internal/logging"
)

// ErrWorkerIDInUse is returned by Start when another process holds the
// lock for the same worker id.
var ErrWorkerIDInUse = errors.New("worker id already in use")

// Worker polls a jobs.Manager and executes claimed jobs.
type Worker struct {
	mgr    *jobs.Manager
	logger *slog.Logger

	id                 string
	queue              string
	concurrency        int
	pollInterval       time.Duration
	errorRetryInterval time.Duration

	lockPath string
	lock     *flock.Flock
	limiter  *rate.Limiter
	metrics  *Metrics

	wake        chan struct{}
	unsubscribe func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	lastError atomic.Pointer[string]
}

// Status is a point-in-time snapshot of worker activity.
type Status struct {
	ID        string
	Queue     string
	Running   bool
	Lanes     int
	Processed int64
	Succeeded int64
	Failed    int64
	LastError string
	LockPath  string
}

// Option customizes a Worker.
type Option func(*Worker)

// WithMetrics reports job outcomes to m.
func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// New constructs a Worker from configuration. An empty worker id is replaced
// with a generated one.
func New(cfg *config.Config, mgr *jobs.Manager, logger *slog.Logger, opts ...Option) (*Worker, error) {
	if cfg == nil || mgr == nil {
		return nil, errors.New("worker requires config and job manager")
	}
	id := strings.TrimSpace(cfg.Worker.ID)
	if id == "" {
		id = "worker-" + uuid.NewString()
	}
	concurrency := cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	lockPath := filepath.Join(cfg.LockDir(), id+".lock")

	w := &Worker{
		mgr:                mgr,
		id:                 id,
		queue:              cfg.Worker.Queue,
		concurrency:        concurrency,
		pollInterval:       cfg.PollInterval(),
		errorRetryInterval: cfg.ErrorRetryInterval(),
		lockPath:           lockPath,
		lock:               flock.New(lockPath),
		wake:               make(chan struct{}, 1),
	}
	if cfg.Worker.RateLimit > 0 {
		burst := cfg.Worker.RateBurst
		if burst <= 0 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.Worker.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.NewComponentLogger(logger, "worker").With(
		logging.String(logging.FieldWorkerID, id),
		logging.String(logging.FieldQueue, w.queue),
	)
	return w, nil
}

// ID returns the worker's claim identity.
func (w *Worker) ID() string { return w.id }

// Start acquires the worker id lock and launches the polling lanes.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}

	if err := os.MkdirAll(filepath.Dir(w.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	locked, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire worker lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s (lock %s)", ErrWorkerIDInUse, w.id, w.lockPath)
	}

	w.unsubscribe = w.mgr.Subscribe(func(e jobs.Event) {
		if e.Name != jobs.EventJobAdded {
			return
		}
		if w.queue != "" && e.Job != nil && e.Job.Queue() != w.queue {
			return
		}
		w.signal()
	})

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for lane := 1; lane <= w.concurrency; lane++ {
		logger := w.logger.With(logging.Int("lane", lane))
		group.Go(func() error {
			w.runLane(groupCtx, logger)
			return nil
		})
	}

	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.running = true

	go func() {
		_ = group.Wait()
		w.unsubscribe()
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("release worker lock failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "worker_lock_release_failed"),
				logging.String(logging.FieldErrorHint, "remove the stale lock file if the worker cannot restart"),
			)
		}
		close(done)
	}()

	w.logger.Info("worker started",
		logging.Int("lanes", w.concurrency),
		logging.Duration("poll_interval", w.pollInterval),
	)
	return nil
}

// Stop cancels the lanes and waits for in-flight jobs to report.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("worker stopped",
		logging.Int64("processed", w.processed.Load()),
		logging.Int64("failed", w.failed.Load()),
	)
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Status returns a snapshot of worker activity.
func (w *Worker) Status() Status {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	st := Status{
		ID:        w.id,
		Queue:     w.queue,
		Running:   running,
		Lanes:     w.concurrency,
		Processed: w.processed.Load(),
		Succeeded: w.succeeded.Load(),
		Failed:    w.failed.Load(),
		LockPath:  w.lockPath,
	}
	if msg := w.lastError.Load(); msg != nil {
		st.LastError = *msg
	}
	return st
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bgjob/internal/logging"
)

const (
	defaultMaxTraversalDepth = 1024
	defaultClaimAttempts     = 3
)

// Manager creates, loads, and selects jobs against a RecordStore.
type Manager struct {
	store    RecordStore
	registry *Registry
	logger   *slog.Logger
	clock    func() time.Time

	maxDepth            int
	claimAttempts       int
	defaultMaxRetries   int
	defaultTimeEstimate int

	mu           sync.RWMutex
	listeners    map[int]Listener
	nextListener int
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithClock overrides the time source used for log timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMaxTraversalDepth bounds how many parent-to-child hops Next follows.
func WithMaxTraversalDepth(depth int) Option {
	return func(m *Manager) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// WithClaimAttempts sets how many candidates NextClaimed tries before giving up.
func WithClaimAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.claimAttempts = n
		}
	}
}

// WithDefaultMaxRetries sets the retry budget applied to newly created jobs.
func WithDefaultMaxRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.defaultMaxRetries = n
		}
	}
}

// WithDefaultTimeEstimate sets the time estimate, in seconds, of newly created jobs.
func WithDefaultTimeEstimate(seconds int) Option {
	return func(m *Manager) {
		if seconds >= 0 {
			m.defaultTimeEstimate = seconds
		}
	}
}

// NewManager constructs a Manager. A nil logger is replaced by a no-op logger.
func NewManager(store RecordStore, registry *Registry, logger *slog.Logger, opts ...Option) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	m := &Manager{
		store:               store,
		registry:            registry,
		logger:              logging.NewComponentLogger(logger, "jobs"),
		clock:               time.Now,
		maxDepth:            defaultMaxTraversalDepth,
		claimAttempts:       defaultClaimAttempts,
		defaultTimeEstimate: DefaultTimeEstimate,
		listeners:           make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the job type registry the Manager resolves types against.
func (m *Manager) Registry() *Registry { return m.registry }

// Create builds an Unqueued job of the given type. The type must be registered.
func (m *Manager) Create(label, typeName string, dataset any, parentID int64) (*Job, error) {
	typeName = strings.TrimSpace(typeName)
	ctor, err := m.registry.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	if parentID < 0 {
		return nil, fmt.Errorf("create %q: negative parent id %d", label, parentID)
	}
	raw, err := encodeDataset(dataset)
	if err != nil {
		return nil, err
	}
	return &Job{
		mgr:          m,
		runner:       ctor(),
		parentID:     parentID,
		label:        label,
		typeName:     typeName,
		dataset:      raw,
		timeEstimate: m.defaultTimeEstimate,
		maxRetries:   m.defaultMaxRetries,
		status:       StatusUnqueued,
	}, nil
}

// Load fetches a job by id.
func (m *Manager) Load(ctx context.Context, id int64) (*Job, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job #%d: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("load job #%d: %w", id, ErrJobNotFound)
	}
	return m.hydrate(rec)
}

// Claim atomically assigns job to workerID. It returns false, without error,
// when another worker already owns the job or it is no longer eligible.
func (m *Manager) Claim(ctx context.Context, job *Job, workerID string) (bool, error) {
	if job == nil || job.id == 0 {
		return false, fmt.Errorf("claim: %w", ErrJobNotFound)
	}
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return false, errors.New("claim: worker id is required")
	}
	ok, err := m.store.Claim(ctx, job.id, workerID, EligibleStatuses())
	if err != nil {
		return false, fmt.Errorf("claim job #%d: %w", job.id, err)
	}
	if !ok {
		return false, nil
	}

	fresh, err := m.Load(ctx, job.id)
	if err != nil {
		return false, err
	}
	*job = *fresh
	prev := job.snapshot()
	job.LogHistory("Job was claimed by " + workerID)
	if err := job.Save(ctx, job.queue, workerID); err != nil {
		job.restore(prev)
		return false, err
	}
	m.logger.Debug("job claimed",
		logging.Int64(logging.FieldJobID, job.id),
		logging.String(logging.FieldWorkerID, workerID),
		logging.String(logging.FieldQueue, job.queue),
	)
	return true, nil
}

// NextClaimed selects the next eligible job that no worker owns and claims it
// for workerID. When another worker wins the claim, the selection is retried
// a bounded number of times. It returns (nil, nil) when nothing could be
// claimed.
func (m *Manager) NextClaimed(ctx context.Context, queue, workerID string) (*Job, error) {
	for attempt := 0; attempt < m.claimAttempts; attempt++ {
		job, err := m.next(ctx, Filter{Statuses: EligibleStatuses(), Queue: queue, Unclaimed: true})
		if err != nil || job == nil {
			return nil, err
		}
		ok, err := m.Claim(ctx, job, workerID)
		if err != nil {
			return nil, err
		}
		if ok {
			return job, nil
		}
		m.logger.Debug("claim lost to another worker",
			logging.Int64(logging.FieldJobID, job.id),
			logging.String(logging.FieldWorkerID, workerID),
			logging.Int("attempt", attempt+1),
		)
	}
	return nil, nil
}

// hydrate rebuilds a Job from a stored record. Jobs whose type is not
// registered still load; Run reports ErrUnregisteredJobType for them.
func (m *Manager) hydrate(rec *Record) (*Job, error) {
	p, err := decodePayload(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("job #%d: %w", rec.ID, err)
	}
	status, ok := ParseStatus(string(rec.Status))
	if !ok {
		return nil, fmt.Errorf("job #%d: %w: unknown status %q", rec.ID, ErrInvalidPayload, rec.Status)
	}
	job := &Job{
		mgr:          m,
		id:           rec.ID,
		parentID:     rec.ParentID,
		label:        rec.Title,
		typeName:     p.Type,
		dataset:      p.Dataset,
		history:      p.History,
		output:       p.Output,
		queue:        rec.Queue,
		workerID:     rec.WorkerID,
		timeEstimate: p.TimeEstimate,
		retryI:       p.RetryI,
		maxRetries:   p.MaxRetries,
		status:       status,
		createdAt:    rec.CreatedAt,
		updatedAt:    rec.UpdatedAt,
	}
	if ctor, err := m.registry.Resolve(p.Type); err == nil {
		job.runner = ctor()
	}
	return job, nil
}

// bare rebuilds only the column fields of rec, for records whose payload
// cannot be decoded.
func (m *Manager) bare(rec *Record) *Job {
	return &Job{
		mgr:       m,
		id:        rec.ID,
		parentID:  rec.ParentID,
		label:     rec.Title,
		queue:     rec.Queue,
		workerID:  rec.WorkerID,
		status:    rec.Status,
		createdAt: rec.CreatedAt,
		updatedAt: rec.UpdatedAt,
	}
}

func (m *Manager) hydrateAll(records []*Record) ([]*Job, error) {
	out := make([]*Job, 0, len(records))
	for _, rec := range records {
		job, err := m.hydrate(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (m *Manager) now() time.Time {
	return m.clock()
}

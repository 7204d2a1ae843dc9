package jobs_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"bgjob/internal/jobs"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory RecordStore with failure injection.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*jobs.Record

	failInsert error
	failUpdate error
	failDelete error
	failQuery  error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int64]*jobs.Record)}
}

func cloneRecord(rec *jobs.Record) *jobs.Record {
	cp := *rec
	return &cp
}

func (s *memStore) Insert(_ context.Context, rec *jobs.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return 0, s.failInsert
	}
	s.nextID++
	cp := cloneRecord(rec)
	cp.ID = s.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.records[cp.ID] = cp
	return cp.ID, nil
}

func (s *memStore) Update(_ context.Context, rec *jobs.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return 0, s.failUpdate
	}
	existing, ok := s.records[rec.ID]
	if !ok {
		return 0, errors.New("no such record")
	}
	cp := cloneRecord(rec)
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.records[rec.ID] = cp
	return rec.ID, nil
}

func (s *memStore) Get(_ context.Context, id int64) (*jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (s *memStore) matching(filter jobs.Filter) []*jobs.Record {
	var out []*jobs.Record
	for _, rec := range s.records {
		if filter.ParentID != nil && rec.ParentID != *filter.ParentID {
			continue
		}
		if filter.Queue != "" && rec.Queue != filter.Queue {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, rec.Status) {
			continue
		}
		if filter.Unclaimed && rec.WorkerID != "" {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) Query(_ context.Context, filter jobs.Filter) ([]*jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failQuery != nil {
		return nil, s.failQuery
	}
	out := s.matching(filter)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return false, s.failDelete
	}
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *memStore) Count(_ context.Context, filter jobs.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matching(filter))), nil
}

func (s *memStore) QueueNames(_ context.Context, exclude []jobs.Status) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var names []string
	for _, rec := range s.records {
		if slices.Contains(exclude, rec.Status) {
			continue
		}
		if _, ok := seen[rec.Queue]; ok {
			continue
		}
		seen[rec.Queue] = struct{}{}
		names = append(names, rec.Queue)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) Claim(_ context.Context, id int64, workerID string, eligible []jobs.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.WorkerID != "" || !slices.Contains(eligible, rec.Status) {
		return false, nil
	}
	rec.WorkerID = workerID
	return true, nil
}

// raw returns the stored record for id, failing the test if absent.
func (s *memStore) raw(t *testing.T, id int64) *jobs.Record {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		t.Fatalf("record #%d not in store", id)
	}
	return cloneRecord(rec)
}

// put writes rec verbatim, bypassing the Manager.
func (s *memStore) put(rec jobs.Record) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == 0 {
		s.nextID++
		rec.ID = s.nextID
	} else if rec.ID > s.nextID {
		s.nextID = rec.ID
	}
	s.records[rec.ID] = &rec
	return rec.ID
}

func noopRunner() jobs.Runner {
	return jobs.RunnerFunc(func(context.Context, *jobs.Job) error { return nil })
}

func newTestManager(t *testing.T, opts ...jobs.Option) (*jobs.Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	reg := jobs.NewRegistry()
	reg.Register("noop", noopRunner)
	opts = append([]jobs.Option{jobs.WithDefaultMaxRetries(3)}, opts...)
	return jobs.NewManager(store, reg, nil, opts...), store
}

func mustSave(t *testing.T, mgr *jobs.Manager, label, queue string, parent int64) *jobs.Job {
	t.Helper()
	job, err := mgr.Create(label, "noop", nil, parent)
	if err != nil {
		t.Fatalf("Create(%q): %v", label, err)
	}
	if err := job.Save(context.Background(), queue, ""); err != nil {
		t.Fatalf("Save(%q): %v", label, err)
	}
	return job
}

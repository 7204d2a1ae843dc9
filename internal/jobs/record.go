package jobs

import (
	"context"
	"time"
)

// Record is the persisted shape of a job as the store sees it.
type Record struct {
	ID        int64
	ParentID  int64
	Title     string
	Status    Status
	Queue     string
	WorkerID  string
	Payload   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows store queries. Zero values mean "no constraint".
//
// ParentID restricts results to children of the given job. A pointer to zero
// selects top-level jobs; nil ignores the parent column. Unclaimed skips
// records that a worker currently owns.
type Filter struct {
	ParentID  *int64
	Statuses  []Status
	Queue     string
	Unclaimed bool
	Limit     int
}

// TopLevel returns a ParentID filter value selecting jobs without a parent.
func TopLevel() *int64 {
	var zero int64
	return &zero
}

// ChildrenOf returns a ParentID filter value selecting children of id.
func ChildrenOf(id int64) *int64 {
	return &id
}

// RecordStore is the persistence contract the job core consumes.
//
// Query results are ordered by insertion (oldest first). Get returns
// (nil, nil) when the record does not exist. Claim must be atomic: it
// succeeds only when the record is still unclaimed and its status is one of
// eligible.
type RecordStore interface {
	Insert(ctx context.Context, rec *Record) (int64, error)
	Update(ctx context.Context, rec *Record) (int64, error)
	Get(ctx context.Context, id int64) (*Record, error)
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	QueueNames(ctx context.Context, excludeStatuses []Status) ([]string, error)
	Claim(ctx context.Context, id int64, workerID string, eligible []Status) (bool, error)
}

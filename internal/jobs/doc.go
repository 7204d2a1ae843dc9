// Package jobs implements the background job entity, its lifecycle, and the
// hierarchical dequeue algorithm workers use to pick their next unit of work.
//
// A Manager binds a RecordStore, a Registry of job types, and a logger. Jobs
// are created through the Manager in the Unqueued state and become Queued on
// their first Save. Workers select candidates with Manager.Next, which always
// exhausts a parent's pending descendants before offering an unrelated
// top-level job, then claim them with Manager.Claim, an atomic conditional
// update in the store.
//
// Failure handling lives on the Job itself: MarkAsFailed increments the retry
// counter and decides between Failed (re-selected like Queued) and Abandoned
// (terminal). A job with MaxRetries of zero is never retried.
//
// The package performs no locking around job state; the RecordStore is the
// only synchronization point between workers.
package jobs

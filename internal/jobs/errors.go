package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnregisteredJobType is returned when a job type name has no constructor.
	ErrUnregisteredJobType = errors.New("jobs: unregistered job type")
	// ErrSaveJob is matched by every *SaveError.
	ErrSaveJob = errors.New("jobs: save job")
	// ErrDequeueJob is matched by every *DequeueError.
	ErrDequeueJob = errors.New("jobs: dequeue job")

	ErrJobNotFound       = errors.New("jobs: job not found")
	ErrParentNotFound    = errors.New("jobs: parent job not found")
	ErrInvalidTransition = errors.New("jobs: invalid status transition")
	ErrInvalidPayload    = errors.New("jobs: invalid job payload")

	// ErrTraversalCycle means the parent chain visited the same job twice.
	ErrTraversalCycle = errors.New("jobs: cycle in job hierarchy")
	// ErrTraversalLimit means the descent exceeded the configured depth.
	ErrTraversalLimit = errors.New("jobs: job hierarchy too deep")
)

// SaveError reports a store rejection while persisting a job.
type SaveError struct {
	JobID int64
	Err   error
}

func (e *SaveError) Error() string {
	if e.JobID == 0 {
		return fmt.Sprintf("save new job: %v", e.Err)
	}
	return fmt.Sprintf("save job #%d: %v", e.JobID, e.Err)
}

func (e *SaveError) Unwrap() []error { return []error{ErrSaveJob, e.Err} }

// DequeueError reports a failure removing a job record.
type DequeueError struct {
	JobID int64
	Err   error
}

func (e *DequeueError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("job #%d could not be dequeued", e.JobID)
	}
	return fmt.Sprintf("job #%d could not be dequeued: %v", e.JobID, e.Err)
}

func (e *DequeueError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDequeueJob}
	}
	return []error{ErrDequeueJob, e.Err}
}

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

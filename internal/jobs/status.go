package jobs

import "strings"

// Status represents the lifecycle of a job.
type Status string

const (
	StatusUnqueued   Status = "unqueued"
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusAbandoned  Status = "abandoned"
)

var allStatuses = []Status{
	StatusUnqueued,
	StatusQueued,
	StatusInProgress,
	StatusDone,
	StatusFailed,
	StatusAbandoned,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// EligibleStatuses are the statuses the dequeue algorithm selects from.
// Failed jobs are re-selected exactly like queued ones.
func EligibleStatuses() []Status {
	return []Status{StatusFailed, StatusQueued}
}

// TerminalStatuses are the statuses a job never leaves.
func TerminalStatuses() []Status {
	return []Status{StatusDone, StatusAbandoned}
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status is Done or Abandoned.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusAbandoned
}

// IsEligible reports whether the dequeue algorithm may select a job in this status.
func (s Status) IsEligible() bool {
	return s == StatusQueued || s == StatusFailed
}

// transitions lists the permitted lifecycle moves. Persisting a job without a
// status change is not a transition and is always allowed for non-terminal jobs.
var transitions = map[Status]map[Status]struct{}{
	StatusUnqueued: {
		StatusQueued: {},
	},
	StatusQueued: {
		StatusInProgress: {},
		StatusDone:       {},
		StatusFailed:     {},
		StatusAbandoned:  {},
	},
	StatusInProgress: {
		StatusDone:      {},
		StatusFailed:    {},
		StatusAbandoned: {},
	},
	StatusFailed: {
		StatusInProgress: {},
		StatusDone:       {},
		StatusFailed:     {},
		StatusAbandoned:  {},
	},
	// A repeated failure keeps an abandoned job abandoned.
	StatusAbandoned: {
		StatusAbandoned: {},
	},
	StatusDone: {},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

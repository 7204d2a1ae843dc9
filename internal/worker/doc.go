// Package worker runs the poll, claim, execute, and report loop over a
// jobs.Manager.
//
// A Worker owns a stable id, guarded by a lock file so two processes cannot
// run under the same identity, and one or more lanes that each poll for the
// next eligible job. A lane claims the job atomically, marks it started,
// runs the job type's logic, and records the outcome with MarkAsDone or
// MarkAsFailed. Outcomes are persisted even while the worker is shutting
// down, so a stopped worker never leaves a job stranded in progress.
package worker

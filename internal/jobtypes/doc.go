// Package jobtypes provides the built-in job types shipped with bgjob:
// echo, sleep, fail, and spawn. They exercise every path a worker can take
// (success, cancellation, failure, and child creation) and double as
// examples for hosts registering their own types.
package jobtypes

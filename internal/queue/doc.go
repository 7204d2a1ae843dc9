// Package queue persists job records in SQLite and implements the
// jobs.RecordStore contract.
//
// The Store manages database connections, schema initialization, busy-retry
// backoff, the atomic claim statement workers race on, and the stats and
// health queries the CLI reports. Queue name and worker id are first-class
// indexed columns; everything else a job carries lives in the JSON payload
// column and is interpreted by the jobs package.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue

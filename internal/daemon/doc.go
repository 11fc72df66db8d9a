// Package daemon coordinates the long-running spool process.
//
// It composes the worker pool supervisor, the HTTP API server and the watch
// scheduler into a single lifecycle guarded by a flock-based lock so two
// processes with the same role cannot run against one data directory. Any
// component may be absent: "spool worker" runs only the pool, "spool serve"
// only the API, and "spool run" all three.
//
// Keep orchestration logic here: job execution lives in workflow, loop
// supervision in supervisor, and request handling in api.
package daemon

// Package workflow drives a single job through its retry attempts.
//
// The Runner loads the record, marks it processing, and runs the media
// pipeline up to workers.max_retries times. Each attempt is bounded by
// workers.job_timeout; a timed-out attempt is cancelled, recorded, and retried
// like any other retryable failure. Failures the classifier marks as
// permanent skip straight to the skipped status without backoff. Between
// retryable attempts the runner sleeps base*2^attempt, capped at
// workers.backoff_max.
//
// Once an attempt ends its progress reporter is closed, so a late progress
// line from a terminating tool can never overwrite a terminal status. Terminal
// writes and callbacks use a context detached from shutdown cancellation so
// they still land while the daemon is stopping.
//
// The HeartbeatMonitor refreshes the heartbeat of the running attempt and,
// when enabled, fails jobs whose heartbeat is older than the stale threshold.
package workflow

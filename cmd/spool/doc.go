// Package main hosts the spool CLI.
//
// Submission and status commands talk to the job store directly through the
// same QueueService the HTTP API uses, so the CLI works without a running
// API server. The run, worker and serve commands start the long-lived
// processes.
package main

// Package preflight provides readiness checks for the job store, artifact
// storage, external tools and filesystem paths that spool depends on.
//
// The CLI "spool preflight" command runs RunAll and prints each result. The
// daemon logs the same results once at startup and refuses to start when the
// job store is unreachable; other failures are reported but not fatal, since
// a missing optional tool only affects jobs that request it.
package preflight

// Package services defines shared utilities consumed by the pipeline stages,
// the attempt loop, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, worker indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep stage context on
//     failures.
//   - Classify, the single place that decides whether a failure is retried,
//     skipped, or a shutdown signal.
package services

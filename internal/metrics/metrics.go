// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spool_jobs_enqueued_total",
			Help: "Total number of jobs written to the dispatch queue",
		},
		[]string{"source"}, // api, cli, watcher
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spool_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal status",
		},
		[]string{"status"}, // done, error, skipped
	)

	JobAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spool_job_attempts_total",
			Help: "Total number of pipeline attempts by outcome",
		},
		[]string{"result"}, // success, retryable, skip, timeout, canceled
	)

	WorkerRestartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spool_worker_restarts_total",
			Help: "Total number of worker loops restarted by the supervisor",
		},
	)

	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spool_callbacks_total",
			Help: "Total number of completion callbacks by delivery result",
		},
		[]string{"result"}, // delivered, failed
	)

	WatcherItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spool_watcher_items_total",
			Help: "Total number of listing items examined by the channel watcher",
		},
		[]string{"outcome"}, // accepted, seen, live, short, too_short, unknown_duration
	)

	StaleJobsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spool_stale_jobs_reaped_total",
			Help: "Total number of jobs failed by the stale-heartbeat reaper",
		},
	)

	// Gauges
	ActiveAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spool_active_attempts",
			Help: "Current number of pipeline attempts in flight",
		},
	)

	// Buckets: 1s to ~68m
	AttemptDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spool_attempt_duration_seconds",
			Help:    "Pipeline attempt duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 13),
		},
	)
)

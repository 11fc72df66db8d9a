package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"spool/internal/logging"
	"spool/internal/metrics"
	"spool/internal/queue"
)

// staleMessage is recorded on jobs failed by the reaper.
const staleMessage = "stale: worker lost"

// JobLister enumerates job ids for the stale reaper. *queue.Client satisfies it.
type JobLister interface {
	JobStore
	JobIDs(ctx context.Context) ([]string, error)
}

// HeartbeatMonitor manages attempt heartbeats and stale job reclamation.
type HeartbeatMonitor struct {
	logger            *slog.Logger
	heartbeatInterval time.Duration
	staleAfter        time.Duration
	now               func() time.Time
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(logger *slog.Logger, interval, staleAfter time.Duration, now func() time.Time) *HeartbeatMonitor {
	if now == nil {
		now = time.Now
	}
	return &HeartbeatMonitor{
		logger:            logger,
		heartbeatInterval: interval,
		staleAfter:        staleAfter,
		now:               now,
	}
}

// Start refreshes the heartbeat through rep until the returned stop function
// is called or ctx ends. Stop blocks until the loop has exited.
func (h *HeartbeatMonitor) Start(ctx context.Context, rep *reporter) (stop func()) {
	if h.heartbeatInterval <= 0 {
		return func() {}
	}
	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go h.loop(loopCtx, &wg, rep)
	return func() {
		cancel()
		wg.Wait()
	}
}

func (h *HeartbeatMonitor) loop(ctx context.Context, wg *sync.WaitGroup, rep *reporter) {
	defer wg.Done()
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rep.beat(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("attempt ended, heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}

// ReapStale marks non-terminal jobs whose heartbeat is older than the stale
// threshold as failed and returns them. Queued jobs that never started are
// left alone.
func (h *HeartbeatMonitor) ReapStale(ctx context.Context, store JobLister) ([]*queue.Job, error) {
	if h.staleAfter <= 0 {
		return nil, nil
	}
	ids, err := store.JobIDs(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := h.now().Add(-h.staleAfter)
	var reaped []*queue.Job
	for _, id := range ids {
		if ctx.Err() != nil {
			return reaped, ctx.Err()
		}
		job, err := store.Get(ctx, id)
		if err != nil {
			continue
		}
		if job.Status.IsTerminal() || job.Status == queue.StatusQueued || job.Status == "" {
			continue
		}
		last := job.Heartbeat
		if last.IsZero() {
			last = job.UpdatedAt
		}
		if last.IsZero() || last.After(cutoff) {
			continue
		}
		if err := store.Update(ctx, id, map[string]string{
			queue.FieldStatus:    string(queue.StatusError),
			queue.FieldError:     staleMessage,
			queue.FieldLastError: staleMessage,
		}); err != nil {
			h.logger.Warn("failed to reap stale job", logging.JobID(id), logging.Error(err))
			continue
		}
		job.Status = queue.StatusError
		job.Error = staleMessage
		job.LastError = staleMessage
		reaped = append(reaped, job)
		metrics.StaleJobsReapedTotal.Inc()
		metrics.JobsFinishedTotal.WithLabelValues(string(queue.StatusError)).Inc()
	}
	if len(reaped) > 0 {
		h.logger.Info("reaped stale jobs", logging.Int("count", len(reaped)))
	}
	return reaped, nil
}

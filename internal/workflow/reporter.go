package workflow

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"spool/internal/logging"
	"spool/internal/queue"
)

// reporter persists stage progress for one attempt. After close every call
// is a no-op, and close waits for an in-flight write, so nothing written
// through a reporter can land after the attempt's outcome.
type reporter struct {
	mu      sync.Mutex
	closed  bool
	store   JobStore
	id      string
	logger  *slog.Logger
	now     func() time.Time
	last    queue.Status
	sampler *logging.ProgressSampler
}

func newReporter(store JobStore, id string, logger *slog.Logger, now func() time.Time) *reporter {
	return &reporter{
		store:   store,
		id:      id,
		logger:  logger,
		now:     now,
		sampler: logging.NewProgressSampler(10),
	}
}

// Stage records entry into a stage without a percentage.
func (r *reporter) Stage(ctx context.Context, stage queue.Status) {
	r.write(ctx, stage, stage, 0, -1)
}

// Progress records a parsed percentage marker for stage.
func (r *reporter) Progress(ctx context.Context, stage queue.Status, percent float64) {
	percent = math.Round(math.Max(0, math.Min(100, percent))*10) / 10
	r.write(ctx, stage, queue.StageStatus(stage, percent), percent, percent)
}

func (r *reporter) write(ctx context.Context, stage, status queue.Status, progress, logPercent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || status == r.last {
		return
	}
	fields := map[string]string{
		queue.FieldStatus:    string(status),
		queue.FieldProgress:  queue.FormatFloat(progress),
		queue.FieldHeartbeat: queue.FormatTime(r.now()),
	}
	if err := r.store.Update(ctx, r.id, fields); err != nil {
		if ctx.Err() == nil {
			r.logger.Debug("progress write failed", logging.Error(err))
		}
		return
	}
	r.last = status
	if r.sampler.ShouldLog(logPercent, string(stage)) {
		r.logger.Info("stage progress",
			logging.Stage(string(stage)),
			logging.Float64("percent", progress),
		)
	}
}

// beat refreshes the heartbeat alone.
func (r *reporter) beat(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.store.Update(ctx, r.id, map[string]string{queue.FieldHeartbeat: queue.FormatTime(r.now())})
}

func (r *reporter) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

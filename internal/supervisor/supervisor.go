// Package supervisor runs the fixed pool of worker loops.
//
// Each loop owns its own job store connection, pops one job id at a time and
// runs it to completion before popping again. A monitor checks every loop at
// the liveness interval and restarts any loop that has exited, whether it
// returned an error or panicked, on a fresh connection. Shutdown happens in two
// phases: popping stops immediately, in-flight jobs get the grace period to
// finish, and then their context is cancelled.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/metrics"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/workflow"
)

// forceWait bounds how long Run waits for loops after cancelling their jobs.
const forceWait = 10 * time.Second

// Processor runs one popped job. *workflow.Runner satisfies it.
type Processor interface {
	Process(ctx context.Context, store workflow.JobStore, id string) (workflow.Outcome, error)
}

// Reaper fails jobs whose worker was lost. *workflow.Runner satisfies it.
type Reaper interface {
	ReapStale(ctx context.Context, store workflow.JobLister) (int, error)
}

// WorkerStatus is a point-in-time view of one loop.
type WorkerStatus struct {
	Index    int
	Alive    bool
	JobID    string
	Restarts int
}

// Supervisor owns the worker loops.
type Supervisor struct {
	count      int
	dial       queue.Dialer
	queueName  string
	popTimeout time.Duration
	liveness   time.Duration
	grace      time.Duration
	reap       bool
	processor  Processor
	logger     *slog.Logger

	mu      sync.Mutex
	workers []*worker
	running atomic.Bool
}

type worker struct {
	index    int
	done     chan struct{}
	jobID    atomic.Value
	restarts int
	err      error
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithIntervals overrides the liveness poll and shutdown grace periods.
func WithIntervals(liveness, grace time.Duration) Option {
	return func(s *Supervisor) {
		if liveness > 0 {
			s.liveness = liveness
		}
		if grace > 0 {
			s.grace = grace
		}
	}
}

// WithPopTimeout overrides the blocking pop wait.
func WithPopTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.popTimeout = d
		}
	}
}

// New constructs a supervisor from configuration.
func New(cfg *config.Config, dial queue.Dialer, processor Processor, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		count:      cfg.Workers.Count,
		dial:       dial,
		queueName:  cfg.Store.QueueName,
		popTimeout: cfg.PopTimeout(),
		liveness:   cfg.LivenessInterval(),
		grace:      cfg.ShutdownGrace(),
		reap:       cfg.Workers.ReapStale,
		processor:  processor,
		logger:     logging.NewComponentLogger(logger, "supervisor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.count < 1 {
		s.count = 1
	}
	return s
}

// Run starts the pool and blocks until ctx ends and the loops have exited.
// An unreachable store at startup is returned immediately unless ctx has
// already ended.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("supervisor already running")
	}
	defer s.running.Store(false)

	control, err := queue.NewClient(ctx, s.dial, s.queueName, s.logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("job store unavailable: %w", err)
	}
	defer control.Close()

	popCtx, stopPopping := context.WithCancel(ctx)
	defer stopPopping()
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	s.mu.Lock()
	s.workers = make([]*worker, s.count)
	for i := range s.workers {
		s.workers[i] = s.start(popCtx, jobCtx, i, 0)
	}
	s.mu.Unlock()
	s.logger.Info("worker pool started",
		logging.Int("workers", s.count),
		logging.String("queue", s.queueName),
		logging.Bool("reap_stale", s.reap),
	)

	ticker := time.NewTicker(s.liveness)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(stopPopping, cancelJobs)
		case <-ticker.C:
			s.restartDead(popCtx, jobCtx)
			if s.reap {
				s.reapStale(popCtx, control)
			}
		}
	}
}

// Status reports the current loops.
func (s *Supervisor) Status() []WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkerStatus, 0, len(s.workers))
	for _, w := range s.workers {
		if w == nil {
			continue
		}
		st := WorkerStatus{Index: w.index, Restarts: w.restarts, Alive: !isClosed(w.done)}
		if id, ok := w.jobID.Load().(string); ok {
			st.JobID = id
		}
		out = append(out, st)
	}
	return out
}

func (s *Supervisor) start(popCtx, jobCtx context.Context, index, restarts int) *worker {
	w := &worker{index: index, done: make(chan struct{}), restarts: restarts}
	w.jobID.Store("")
	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.err = fmt.Errorf("worker panic: %v", r)
				logging.ErrorWithContext(s.logger, "worker loop panicked", "worker_panic",
					logging.Worker(index),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())),
					logging.String(logging.FieldErrorHint, "the in-flight job keeps its last status"),
					logging.Alert("worker_panic"),
				)
			}
		}()
		w.err = s.loop(popCtx, jobCtx, w)
	}()
	return w
}

// loop pops and processes jobs until popCtx ends or the store fails.
func (s *Supervisor) loop(popCtx, jobCtx context.Context, w *worker) error {
	popCtx = services.WithWorker(popCtx, w.index)
	jobCtx = services.WithWorker(jobCtx, w.index)
	logger := logging.WithContext(popCtx, s.logger)

	client, err := queue.NewClient(popCtx, s.dial, s.queueName, logger)
	if err != nil {
		if popCtx.Err() != nil {
			return nil
		}
		return err
	}
	defer client.Close()
	logger.Debug("worker loop started")

	for {
		if popCtx.Err() != nil {
			return nil
		}
		id, err := client.Pop(popCtx, s.popTimeout)
		if err != nil {
			if popCtx.Err() != nil {
				return nil
			}
			return services.Wrap(services.ErrStore, "worker", "pop", "", err)
		}
		if id == "" {
			continue
		}
		w.jobID.Store(id)
		outcome, err := s.processor.Process(jobCtx, client, id)
		w.jobID.Store("")
		if err != nil {
			logger.Warn("job could not be processed",
				logging.JobID(id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_process_failed"),
			)
			continue
		}
		logger.Debug("job finished",
			logging.JobID(id),
			logging.String("status", string(outcome.Status)),
			logging.Int("attempts", outcome.Attempts),
		)
	}
}

func (s *Supervisor) restartDead(popCtx, jobCtx context.Context) {
	if popCtx.Err() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.workers {
		if !isClosed(w.done) {
			continue
		}
		logging.WarnWithContext(s.logger, "worker loop exited; restarting", "worker_restart",
			logging.Worker(w.index),
			logging.Error(w.err),
			logging.Int("restarts", w.restarts+1),
			logging.String(logging.FieldImpact, "loop restarted with a fresh store connection"),
		)
		metrics.WorkerRestartsTotal.Inc()
		s.workers[i] = s.start(popCtx, jobCtx, w.index, w.restarts+1)
	}
}

func (s *Supervisor) reapStale(ctx context.Context, store workflow.JobLister) {
	reaper, ok := s.processor.(Reaper)
	if !ok {
		return
	}
	if _, err := reaper.ReapStale(ctx, store); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(s.logger, "stale job scan failed", "reap_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job store connectivity"),
		)
	}
}

func (s *Supervisor) shutdown(stopPopping, cancelJobs context.CancelFunc) error {
	stopPopping()
	s.logger.Info("worker pool stopping", logging.Duration("grace", s.grace))

	if s.waitAll(s.grace) {
		s.logger.Info("worker pool stopped")
		return nil
	}
	logging.WarnWithContext(s.logger, "grace period elapsed; cancelling in-flight jobs", "shutdown_forced",
		logging.String(logging.FieldImpact, "in-flight jobs are requeued"),
	)
	cancelJobs()
	if !s.waitAll(forceWait) {
		return errors.New("worker loops did not exit after cancellation")
	}
	return nil
}

func (s *Supervisor) waitAll(timeout time.Duration) bool {
	s.mu.Lock()
	workers := append([]*worker(nil), s.workers...)
	s.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, w := range workers {
		select {
		case <-w.done:
		case <-deadline.C:
			return false
		}
	}
	return true
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

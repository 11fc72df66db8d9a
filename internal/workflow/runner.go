package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/metrics"
	"spool/internal/notifications"
	"spool/internal/pipeline"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/textutil"
)

// maxErrorLen bounds error text stored on job records.
const maxErrorLen = 2000

// finalWriteTimeout bounds terminal writes and callbacks that run on a
// detached context.
const finalWriteTimeout = 30 * time.Second

// JobStore is the record access an attempt loop needs. *queue.Client
// satisfies it.
type JobStore interface {
	Get(ctx context.Context, id string) (*queue.Job, error)
	Update(ctx context.Context, id string, fields map[string]string) error
	Requeue(ctx context.Context, id string) error
}

// Pipeline runs one attempt of the media stages.
type Pipeline interface {
	Run(ctx context.Context, job *queue.Job, rep pipeline.Reporter) (queue.Result, error)
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Outcome summarizes how Process left a job.
type Outcome struct {
	Status   queue.Status
	Attempts int
	Err      error
	// Interrupted is set when shutdown cancelled the job before a terminal
	// status was written.
	Interrupted bool
}

// Runner is the per-job attempt loop. A single Runner is shared by every
// worker loop; each loop passes its own JobStore.
type Runner struct {
	maxRetries  int
	jobTimeout  time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration

	pipeline  Pipeline
	notifier  notifications.Service
	heartbeat *HeartbeatMonitor
	logger    *slog.Logger
	sleep     Sleeper
	now       func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSleeper replaces the backoff sleep, typically to record waits in tests.
func WithSleeper(s Sleeper) Option {
	return func(r *Runner) {
		if s != nil {
			r.sleep = s
		}
	}
}

// WithClock replaces the time source used for heartbeats.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner constructs the attempt loop from configuration.
func NewRunner(cfg *config.Config, p Pipeline, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Runner {
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	r := &Runner{
		maxRetries:  cfg.Workers.MaxRetries,
		jobTimeout:  cfg.JobTimeout(),
		backoffBase: cfg.BackoffBase(),
		backoffMax:  cfg.BackoffMax(),
		pipeline:    p,
		notifier:    notifier,
		logger:      logger,
		sleep:       sleepContext,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.heartbeat = NewHeartbeatMonitor(logger, cfg.HeartbeatInterval(), cfg.StaleAfter(), r.now)
	if r.maxRetries < 1 {
		r.maxRetries = 1
	}
	return r
}

// ReapStale fails jobs whose worker stopped heartbeating and fires their
// callbacks.
func (r *Runner) ReapStale(ctx context.Context, store JobLister) (int, error) {
	reaped, err := r.heartbeat.ReapStale(ctx, store)
	for _, job := range reaped {
		jobCtx := services.WithJobID(ctx, job.ID)
		r.notify(jobCtx, store, job, map[string]string{}, logging.WithContext(jobCtx, r.logger))
	}
	return len(reaped), err
}

// Process runs job id to a terminal status. Errors reaching the caller are
// store failures reading the record; the id is pushed back unless the record
// is missing. Every pipeline failure is absorbed into the record and the
// returned Outcome.
func (r *Runner) Process(ctx context.Context, store JobStore, id string) (Outcome, error) {
	ctx = services.WithJobID(ctx, id)
	logger := logging.WithContext(ctx, r.logger)

	job, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logging.WarnWithContext(logger, "popped job has no record; dropping", "job_missing",
				logging.String(logging.FieldErrorHint, "job ids must be written before they are pushed"),
				logging.String(logging.FieldImpact, "queue entry discarded"),
			)
			return Outcome{}, err
		}
		r.requeueUnread(ctx, store, id, err)
		return Outcome{}, err
	}
	if job.Status.IsTerminal() {
		logger.Info("job already finished; ignoring duplicate dispatch", logging.String("status", string(job.Status)))
		return Outcome{Status: job.Status}, nil
	}
	if err := job.Validate(); err != nil {
		message := textutil.Truncate(err.Error(), maxErrorLen)
		return r.finish(ctx, store, job, queue.StatusError, map[string]string{
			queue.FieldError:     message,
			queue.FieldLastError: message,
		}, 0, err), nil
	}

	logger.Info("job started",
		logging.String("url", job.URL),
		logging.String("media", string(job.Media)),
		logging.Bool("transcribe", job.Transcribe),
	)
	if err := store.Update(ctx, id, map[string]string{
		queue.FieldStatus:    string(queue.StatusProcessing),
		queue.FieldHeartbeat: queue.FormatTime(r.now()),
	}); err != nil {
		logger.Warn("failed to mark job processing", logging.Error(err))
	}

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return r.interrupt(ctx, store, job, attempt, lastErr), nil
		}
		attemptLogger := logger.With(logging.Attempt(attempt+1))

		job.RetryCount = attempt
		if err := store.Update(ctx, id, map[string]string{
			queue.FieldRetryCount: fmt.Sprint(attempt),
			queue.FieldStatus:     string(queue.StatusProcessing),
			queue.FieldHeartbeat:  queue.FormatTime(r.now()),
		}); err != nil {
			attemptLogger.Warn("failed to record attempt start", logging.Error(err))
		}

		result, err := r.attempt(ctx, store, job, attemptLogger)
		if err == nil {
			job.Result = result
			fields := result.Fields()
			fields[queue.FieldProgress] = "100"
			attemptLogger.Info("job completed", logging.String("public_url", result.PublicURL))
			return r.finish(ctx, store, job, queue.StatusDone, fields, attempt+1, nil), nil
		}
		lastErr = err

		category := services.Classify(err)
		if category == services.CategoryCanceled || ctx.Err() != nil {
			return r.interrupt(ctx, store, job, attempt+1, err), nil
		}

		message := textutil.Truncate(strings.TrimSpace(err.Error()), maxErrorLen)
		if err := store.Update(ctx, id, map[string]string{queue.FieldLastError: message}); err != nil {
			attemptLogger.Warn("failed to record attempt error", logging.Error(err))
		}

		if category == services.CategorySkip {
			attemptLogger.Info("content unavailable; skipping job",
				logging.String("reason", message),
				logging.String(logging.FieldEventType, "job_skipped"),
			)
			return r.finish(ctx, store, job, queue.StatusSkipped, map[string]string{
				queue.FieldError: message,
			}, attempt+1, err), nil
		}

		if attempt+1 >= r.maxRetries {
			break
		}
		wait := Backoff(r.backoffBase, r.backoffMax, attempt)
		logging.WarnWithContext(attemptLogger, "attempt failed; retrying", "job_retry",
			logging.Error(err),
			logging.Stage(services.StageOf(err)),
			logging.Duration("backoff", wait),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "job will be retried"),
		)
		if err := r.sleep(ctx, wait); err != nil {
			return r.interrupt(ctx, store, job, attempt+1, lastErr), nil
		}
	}

	message := textutil.Truncate(fmt.Sprintf("failed after %d attempts: %s", r.maxRetries, strings.TrimSpace(lastErr.Error())), maxErrorLen)
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(lastErr),
		logging.Stage(services.StageOf(lastErr)),
		logging.Int("attempts", r.maxRetries),
		logging.String(logging.FieldErrorHint, services.Hint(lastErr)),
		logging.Alert("job_failed"),
	)
	return r.finish(ctx, store, job, queue.StatusError, map[string]string{
		queue.FieldError: message,
	}, r.maxRetries, lastErr), nil
}

// attempt runs the pipeline once under the job timeout. The reporter and
// heartbeat are stopped before it returns.
func (r *Runner) attempt(ctx context.Context, store JobStore, job *queue.Job, logger *slog.Logger) (result queue.Result, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.jobTimeout)
	defer cancel()

	rep := newReporter(store, job.ID, logger, r.now)
	stopHeartbeat := r.heartbeat.Start(attemptCtx, rep)

	metrics.ActiveAttempts.Inc()
	started := time.Now()
	defer func() {
		stopHeartbeat()
		rep.close()
		metrics.ActiveAttempts.Dec()
		metrics.AttemptDurationSeconds.Observe(time.Since(started).Seconds())
		metrics.JobAttemptsTotal.WithLabelValues(attemptResult(ctx, err)).Inc()
	}()

	result, err = r.pipeline.Run(attemptCtx, job, rep)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = services.Wrap(services.ErrTimeout, "attempt", "", fmt.Sprintf("timed out after %s", r.jobTimeout), err)
	}
	return result, err
}

func attemptResult(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case ctx.Err() != nil:
		return "canceled"
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	case services.Classify(err) == services.CategorySkip:
		return "skip"
	default:
		return "retryable"
	}
}

// requeueUnread returns a popped id to the queue after its record could not
// be read, so the job is not left without an owner.
func (r *Runner) requeueUnread(ctx context.Context, store JobStore, id string, cause error) {
	logger := logging.WithContext(ctx, r.logger)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	if err := store.Requeue(writeCtx, id); err != nil {
		logging.ErrorWithContext(logger, "popped job could not be read or requeued", "job_stranded",
			logging.Error(cause),
			logging.String("requeue_error", err.Error()),
			logging.String(logging.FieldErrorHint, "re-submit the job once the store is reachable"),
			logging.Alert("job_stranded"),
		)
		return
	}
	logging.WarnWithContext(logger, "popped job could not be read; requeued", "job_read_failed",
		logging.Error(cause),
		logging.String(logging.FieldImpact, "job will be dispatched again"),
	)
}

// interrupt handles shutdown mid-job. The record goes back to queued and the
// id is pushed back so the next worker to start resumes it.
func (r *Runner) interrupt(ctx context.Context, store JobStore, job *queue.Job, attempts int, cause error) Outcome {
	logger := logging.WithContext(ctx, r.logger)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	fields := map[string]string{
		queue.FieldStatus:    string(queue.StatusQueued),
		queue.FieldProgress:  queue.FormatFloat(0),
		queue.FieldLastError: "interrupted by shutdown",
	}
	if err := store.Update(writeCtx, job.ID, fields); err != nil {
		logger.Warn("failed to record interruption", logging.Error(err))
	}
	if err := store.Requeue(writeCtx, job.ID); err != nil {
		logging.WarnWithContext(logger, "failed to requeue interrupted job", "job_requeue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-submit the job or enable workers.reap_stale"),
			logging.String(logging.FieldImpact, "job remains in its last in-flight status"),
		)
	} else {
		logger.Info("job interrupted by shutdown; requeued", logging.Int("attempts", attempts))
	}
	job.Status = queue.StatusQueued
	return Outcome{Status: queue.StatusQueued, Attempts: attempts, Err: cause, Interrupted: true}
}

// finish writes the terminal status and fires the callback once.
func (r *Runner) finish(ctx context.Context, store JobStore, job *queue.Job, status queue.Status, fields map[string]string, attempts int, cause error) Outcome {
	logger := logging.WithContext(ctx, r.logger)
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	fields[queue.FieldStatus] = string(status)
	fields[queue.FieldHeartbeat] = queue.FormatTime(r.now())
	if err := store.Update(writeCtx, job.ID, fields); err != nil {
		logging.ErrorWithContext(logger, "failed to persist terminal status", "terminal_write_failed",
			logging.Error(err),
			logging.String("status", string(status)),
			logging.String(logging.FieldErrorHint, "check job store connectivity"),
		)
	}
	job.Status = status
	metrics.JobsFinishedTotal.WithLabelValues(string(status)).Inc()

	r.notify(writeCtx, store, job, fields, logger)
	return Outcome{Status: status, Attempts: attempts, Err: cause}
}

func (r *Runner) notify(ctx context.Context, store JobStore, job *queue.Job, fields map[string]string, logger *slog.Logger) {
	if strings.TrimSpace(job.CallbackURL) == "" {
		return
	}
	record := job.ToFields()
	if stored, err := store.Get(ctx, job.ID); err == nil {
		record = stored.ToFields()
	}
	for k, v := range fields {
		record[k] = v
	}
	if err := r.notifier.NotifyFinished(ctx, job.CallbackURL, record); err != nil {
		metrics.CallbacksTotal.WithLabelValues("failed").Inc()
		logging.WarnWithContext(logger, "completion callback failed", "callback_failed",
			logging.Error(err),
			logging.String("callback_url", job.CallbackURL),
			logging.String(logging.FieldErrorHint, "verify the callback endpoint accepts JSON POSTs"),
			logging.String(logging.FieldImpact, "job result is still available via status"),
		)
		return
	}
	metrics.CallbacksTotal.WithLabelValues("delivered").Inc()
	logger.Debug("completion callback delivered", logging.String("callback_url", job.CallbackURL))
}

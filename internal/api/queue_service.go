package api

import (
	"context"
	"log/slog"
	"strings"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/metrics"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/watcher"
)

// JobQueue is the job store surface the API needs. *queue.Client satisfies it.
type JobQueue interface {
	Enqueue(ctx context.Context, job *queue.Job) (string, error)
	Fields(ctx context.Context, id string) (map[string]string, error)
	Ping(ctx context.Context) error
}

// ChannelChecker runs a channel scan. *watcher.Watcher satisfies it.
type ChannelChecker interface {
	Check(ctx context.Context, sourceURL string, opts watcher.Options) (watcher.Result, error)
}

// QueueService implements submission, status and channel checks on top of
// the job store. The HTTP server and the CLI share it.
type QueueService struct {
	store         JobQueue
	checker       ChannelChecker
	defaultLang   string
	watchDefaults watcher.Options
	logger        *slog.Logger
}

// NewQueueService constructs a QueueService. checker may be nil when channel
// checks are not offered.
func NewQueueService(cfg *config.Config, store JobQueue, checker ChannelChecker, logger *slog.Logger) *QueueService {
	return &QueueService{
		store:         store,
		checker:       checker,
		defaultLang:   cfg.Transcribe.DefaultLang,
		watchDefaults: watcher.OptionsFromConfig(cfg),
		logger:        logging.NewComponentLogger(logger, "api"),
	}
}

// Enqueue validates req, writes the job record and pushes it. source labels
// the enqueue metric (api, cli).
func (s *QueueService) Enqueue(ctx context.Context, req EnqueueRequest, source string) (EnqueueResponse, error) {
	job, err := req.Job(s.defaultLang)
	if err != nil {
		return EnqueueResponse{}, err
	}
	id, err := s.store.Enqueue(ctx, job)
	if err != nil {
		return EnqueueResponse{}, err
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(source).Inc()
	logging.WithContext(ctx, s.logger).Info("job enqueued",
		logging.JobID(id),
		logging.String("url", job.URL),
		logging.String("media", string(job.Media)),
		logging.Bool("transcribe", job.Transcribe),
		logging.String("source", source),
	)
	return EnqueueResponse{JobID: id, Status: string(queue.StatusQueued)}, nil
}

// Status returns the stored record for id.
func (s *QueueService) Status(ctx context.Context, id string) (map[string]string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "status", "job id required", nil)
	}
	return s.store.Fields(ctx, id)
}

// CheckChannel runs the watcher with the request's options over the
// configured defaults.
func (s *QueueService) CheckChannel(ctx context.Context, req CheckChannelRequest) (CheckChannelResponse, error) {
	if s.checker == nil {
		return CheckChannelResponse{}, services.Wrap(services.ErrConfiguration, "api", "check-channel", "channel checks are not enabled", nil)
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		return CheckChannelResponse{}, services.Wrap(services.ErrValidation, "api", "check-channel", "url is required", nil)
	}
	opts := s.watchDefaults
	opts.Track = req.Track.Or(false)
	opts.Enqueue = req.Enqueue.Or(false)
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if m := strings.TrimSpace(req.Media); m != "" {
		parsed, ok := queue.ParseMedia(m)
		if !ok {
			return CheckChannelResponse{}, services.Wrap(services.ErrValidation, "api", "check-channel", "media must be video, audio, or both", nil)
		}
		opts.Media = parsed
	}
	if req.MinDuration != nil {
		opts.MinDuration = *req.MinDuration
	}

	res, err := s.checker.Check(ctx, target, opts)
	if err != nil {
		return CheckChannelResponse{}, err
	}
	out := CheckChannelResponse{
		Items:    make([]ChannelItem, 0, len(res.Items)),
		Enqueued: append([]string{}, res.Enqueued...),
		Count:    res.Count(),
	}
	for _, item := range res.Items {
		out.Items = append(out.Items, ChannelItem(item))
	}
	return out, nil
}

// Health pings the store.
func (s *QueueService) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{OK: true, Role: "api", Store: "up"}
	if err := s.store.Ping(ctx); err != nil {
		logging.WarnWithContext(s.logger, "job store ping failed", "health_store_down",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store.url and that the store is running"),
		)
		resp.OK = false
		resp.Store = "down"
	}
	return resp
}

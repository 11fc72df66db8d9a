package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/media"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/storage"
	"spool/internal/transcribe"
	"spool/internal/ytdlp"
)

// Fetcher downloads media and probes remote metadata.
type Fetcher interface {
	Download(ctx context.Context, req ytdlp.DownloadRequest) error
	Details(ctx context.Context, url string) (ytdlp.Details, error)
}

// Transcoder derives audio from fetched media and probes local files.
type Transcoder interface {
	ExtractAudio(ctx context.Context, source, dest, format string) error
	ExtractWAV(ctx context.Context, source, dest string) error
	Probe(ctx context.Context, path string) (media.ProbeResult, error)
}

// Transcriber turns an audio file into a caption track.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// Reporter receives stage changes. Progress is called for every parsed
// percentage marker; Stage for stages without one.
type Reporter interface {
	Stage(ctx context.Context, stage queue.Status)
	Progress(ctx context.Context, stage queue.Status, percent float64)
}

// Dependencies bundles the collaborators a Pipeline drives.
type Dependencies struct {
	Fetcher     Fetcher
	Transcoder  Transcoder
	Transcriber Transcriber
	Publisher   storage.Publisher
}

// Pipeline runs the media stages for a job.
type Pipeline struct {
	dir               string
	uploadConcurrency int
	deps              Dependencies
	logger            *slog.Logger
}

// New constructs a pipeline writing into the configured download directory.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		dir:               cfg.Paths.DownloadDir,
		uploadConcurrency: cfg.Storage.UploadConcurrency,
		deps:              deps,
		logger:            logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Backend names the storage kind the pipeline publishes to.
func (p *Pipeline) Backend() string {
	if p.deps.Publisher == nil {
		return ""
	}
	return p.deps.Publisher.Backend()
}

// outputs tracks the local files one attempt produced.
type outputs struct {
	video      string
	audio      string
	subtitles  []string
	transcript string
	language   string
}

// Run executes one attempt for job. The returned Result is complete only on
// success.
func (p *Pipeline) Run(ctx context.Context, job *queue.Job, rep Reporter) (queue.Result, error) {
	if err := job.Validate(); err != nil {
		return queue.Result{}, services.Wrap(services.ErrValidation, "validate", "", "job cannot be executed", err)
	}
	if rep == nil {
		rep = nopReporter{}
	}
	logger := logging.WithContext(ctx, p.logger)

	var out outputs
	var err error
	switch job.Media {
	case queue.MediaAudio:
		out.audio, err = p.fetchAudio(ctx, job, rep)
	case queue.MediaBoth:
		out.video, err = p.fetchVideo(ctx, job, rep)
		if err == nil {
			out.audio, err = p.deriveAudio(ctx, job, out.video, rep, logger)
		}
	default:
		out.video, err = p.fetchVideo(ctx, job, rep)
	}
	if err != nil {
		return queue.Result{}, err
	}

	if job.IncludeSubs && out.video != "" {
		subs, err := ytdlp.Subtitles(p.dir, job.Filename)
		if err != nil {
			return queue.Result{}, services.Wrap(services.ErrExternalTool, "subtitles", "enumerate", "", err)
		}
		out.subtitles = subs
		logger.Debug("subtitles collected", logging.Int("count", len(subs)))
	}

	if job.Transcribe {
		if err := p.transcribe(ctx, job, &out, rep); err != nil {
			return queue.Result{}, err
		}
	}

	result := p.probeMetadata(ctx, job, out, logger)

	rep.Stage(ctx, queue.StatusUploading)
	if err := p.publish(ctx, out, &result); err != nil {
		return queue.Result{}, err
	}
	return result, nil
}

func (p *Pipeline) path(name string) string {
	return filepath.Join(p.dir, name)
}

type nopReporter struct{}

func (nopReporter) Stage(context.Context, queue.Status)             {}
func (nopReporter) Progress(context.Context, queue.Status, float64) {}

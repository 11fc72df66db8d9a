package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/ytdlp"
)

func (p *Pipeline) fetchVideo(ctx context.Context, job *queue.Job, rep Reporter) (string, error) {
	rep.Stage(ctx, queue.StatusDownloading)
	err := p.deps.Fetcher.Download(ctx, ytdlp.DownloadRequest{
		URL:       job.URL,
		OutputDir: p.dir,
		Filename:  job.Filename,
		Format:    job.FormatSelector,
		Subtitles: job.IncludeSubs,
		SubLangs:  job.SubLangs,
		Progress: func(pct float64) {
			rep.Progress(ctx, queue.StatusDownloading, pct)
		},
	})
	if err != nil {
		return "", err
	}
	return ytdlp.FindMedia(p.dir, job.Filename, "mp4", "mkv", "webm")
}

func (p *Pipeline) fetchAudio(ctx context.Context, job *queue.Job, rep Reporter) (string, error) {
	rep.Stage(ctx, queue.StatusDownloading)
	err := p.deps.Fetcher.Download(ctx, ytdlp.DownloadRequest{
		URL:         job.URL,
		OutputDir:   p.dir,
		Filename:    job.Filename,
		Audio:       true,
		AudioFormat: job.AudioFormat,
		Progress: func(pct float64) {
			rep.Progress(ctx, queue.StatusDownloading, pct)
		},
	})
	if err != nil {
		return "", err
	}
	return p.expectOutput("fetch", job.Filename+"."+audioExt(job.AudioFormat))
}

// deriveAudio transcodes the fetched video into the requested audio format,
// falling back to an independent audio fetch when the transcode fails.
func (p *Pipeline) deriveAudio(ctx context.Context, job *queue.Job, video string, rep Reporter, logger *slog.Logger) (string, error) {
	rep.Stage(ctx, queue.StatusExtractingAudio)
	dest := p.path(job.Filename + "." + audioExt(job.AudioFormat))
	err := p.deps.Transcoder.ExtractAudio(ctx, video, dest, job.AudioFormat)
	if err == nil {
		return dest, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "", err
	}
	logging.WarnWithContext(logger, "audio transcode failed; fetching audio separately", "audio_fallback",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, "one extra fetch for this attempt"),
	)
	return p.fetchAudio(ctx, job, rep)
}

func (p *Pipeline) expectOutput(stage, name string) (string, error) {
	path := p.path(name)
	if info, err := os.Stat(path); err != nil || info.IsDir() || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, stage, "locate output",
			fmt.Sprintf("expected output %s missing", name), err)
	}
	return path, nil
}

// audioExt maps an audio format to the extension the fetch tool writes.
func audioExt(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return "mp3"
	case "aac":
		return "m4a"
	case "vorbis":
		return "ogg"
	default:
		return f
	}
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/services"
)

// probeMetadata fills duration and quality fields. The remote probe is
// tried first and the local media file fills whatever it left empty.
// Failures are logged and never fail the attempt.
func (p *Pipeline) probeMetadata(ctx context.Context, job *queue.Job, out outputs, logger *slog.Logger) queue.Result {
	var result queue.Result
	details, err := p.deps.Fetcher.Details(ctx, job.URL)
	if err != nil {
		logging.WarnWithContext(logger, "metadata probe failed", "metadata_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "duration and quality fields may be empty"),
		)
	} else {
		result.Duration = details.Duration
		if out.video != "" {
			result.VideoQuality = details.VideoQuality()
			result.VideoFPS = details.FPS
		}
		if out.audio != "" || out.video != "" {
			result.AudioQuality = details.AudioQuality()
		}
	}

	local := out.video
	if local == "" {
		local = out.audio
	}
	if p.deps.Transcoder == nil || local == "" || complete(result, out) {
		return result
	}
	probe, err := p.deps.Transcoder.Probe(ctx, local)
	if err != nil {
		logger.Debug("local probe failed", logging.Error(err))
		return result
	}
	if result.Duration == 0 {
		result.Duration = math.Round(probe.DurationSeconds()*1000) / 1000
	}
	if v, ok := probe.Video(); ok && out.video != "" {
		if result.VideoQuality == "" && v.Height > 0 {
			result.VideoQuality = fmt.Sprintf("%dp", v.Height)
		}
		if result.VideoFPS == 0 {
			result.VideoFPS = v.FPS()
		}
	}
	if a, ok := probe.Audio(); ok && result.AudioQuality == "" {
		if kbps := a.KBPS(); kbps > 0 {
			result.AudioQuality = fmt.Sprintf("%.0fkbps", kbps)
		}
	}
	return result
}

func complete(r queue.Result, out outputs) bool {
	if r.Duration == 0 || r.AudioQuality == "" {
		return false
	}
	if out.video != "" && (r.VideoQuality == "" || r.VideoFPS == 0) {
		return false
	}
	return true
}

package pipeline

import (
	"context"

	"spool/internal/fileutil"
	"spool/internal/queue"
	"spool/internal/transcribe"
)

// transcribe writes "<filename>.srt". When the attempt has no audio artifact
// a temporary WAV is extracted from the video and removed afterwards.
func (p *Pipeline) transcribe(ctx context.Context, job *queue.Job, out *outputs, rep Reporter) error {
	source := out.audio
	if source == "" {
		rep.Stage(ctx, queue.StatusExtractingAudio)
		tmp := p.path("." + job.Filename + ".stt.wav")
		defer fileutil.RemoveIfExists(tmp)
		if err := p.deps.Transcoder.ExtractWAV(ctx, out.video, tmp); err != nil {
			return err
		}
		source = tmp
	}

	rep.Progress(ctx, queue.StatusTranscribing, 0)
	res, err := p.deps.Transcriber.Transcribe(ctx, transcribe.Request{
		Audio:    source,
		Output:   p.path(job.Filename + ".srt"),
		Language: job.TranscribeLang,
		Prompt:   job.TranscribePrompt,
		Progress: func(pct float64) {
			rep.Progress(ctx, queue.StatusTranscribing, pct)
		},
	})
	if err != nil {
		return err
	}
	out.transcript = res.Path
	out.language = res.Language
	return nil
}

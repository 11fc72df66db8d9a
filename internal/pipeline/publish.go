package pipeline

import (
	"context"

	"spool/internal/queue"
	"spool/internal/storage"
	"spool/internal/ytdlp"
)

// publish uploads every artifact and records the resulting references.
func (p *Pipeline) publish(ctx context.Context, out outputs, result *queue.Result) error {
	var paths []string
	add := func(path string) int {
		if path == "" {
			return -1
		}
		paths = append(paths, path)
		return len(paths) - 1
	}
	videoIdx := add(out.video)
	audioIdx := add(out.audio)
	transcriptIdx := add(out.transcript)
	firstSub := len(paths)
	for _, s := range out.subtitles {
		add(s)
	}

	artifacts, err := storage.PublishAll(ctx, p.deps.Publisher, paths, p.uploadConcurrency)
	if err != nil {
		return err
	}

	primary := out.video
	if videoIdx >= 0 {
		result.VideoFile = artifacts[videoIdx].URL
		result.PublicURL = result.VideoFile
	}
	if audioIdx >= 0 {
		result.AudioFile = artifacts[audioIdx].URL
		if result.PublicURL == "" {
			result.PublicURL = result.AudioFile
			primary = out.audio
		}
	}
	if transcriptIdx >= 0 {
		result.TranscriptFile = artifacts[transcriptIdx].URL
		result.TranscriptLang = out.language
	}
	for _, a := range artifacts[firstSub:] {
		result.SubtitleFiles = append(result.SubtitleFiles, a.URL)
	}
	result.Ext = ytdlp.Ext(primary)
	result.Storage = p.deps.Publisher.Backend()
	return nil
}

package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"spool/internal/services"
	"spool/internal/toolexec"
)

// Transcoder runs ffmpeg conversions.
type Transcoder struct {
	ffmpeg  string
	ffprobe string
	runner  toolexec.Runner
}

// NewTranscoder constructs a transcoder. A nil runner uses os/exec.
func NewTranscoder(ffmpegBinary, ffprobeBinary string, runner toolexec.Runner) *Transcoder {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Transcoder{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary, runner: runner}
}

// ExtractAudio derives an audio file in format from a video source.
func (t *Transcoder) ExtractAudio(ctx context.Context, source, dest, format string) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", source, "-vn", "-sn", "-dn"}
	args = append(args, codecArgs(format)...)
	args = append(args, dest)
	return t.run(ctx, "transcode", source, dest, args)
}

// ExtractWAV writes a mono 16kHz PCM file suitable for speech recognition.
func (t *Transcoder) ExtractWAV(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	return t.run(ctx, "transcribe", source, dest, args)
}

func (t *Transcoder) run(ctx context.Context, stage, source, dest string, args []string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, stage, "ffmpeg", "source and destination required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stage, "ffmpeg", "ensure output dir", err)
	}
	if _, err := t.runner.Run(ctx, toolexec.Command{Name: t.ffmpeg, Args: args}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, stage, "ffmpeg", filepath.Base(source), err)
	}
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, stage, "ffmpeg",
			fmt.Sprintf("expected output %s missing", filepath.Base(dest)), err)
	}
	return nil
}

func codecArgs(format string) []string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-q:a", "2"}
	case "wav":
		return []string{"-c:a", "pcm_s16le"}
	case "m4a", "aac":
		return []string{"-c:a", "aac", "-b:a", "192k"}
	case "opus":
		return []string{"-c:a", "libopus", "-b:a", "128k"}
	case "ogg", "vorbis":
		return []string{"-c:a", "libvorbis", "-q:a", "5"}
	case "flac":
		return []string{"-c:a", "flac"}
	default:
		return nil
	}
}

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"spool/internal/toolexec"
)

// ProbeResult represents the parsed output from an ffprobe inspection.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	BitRate      string `json:"bit_rate"`
}

// Format captures container-level metadata.
type Format struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

// Probe inspects path with ffprobe.
func (t *Transcoder) Probe(ctx context.Context, path string) (ProbeResult, error) {
	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
	out, err := t.runner.Run(ctx, toolexec.Command{Name: t.ffprobe, Args: args, CaptureStdout: true})
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result ProbeResult
	if err := json.Unmarshal([]byte(out.Stdout), &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration, or 0 when unavailable.
func (r ProbeResult) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// Video returns the first video stream.
func (r ProbeResult) Video() (Stream, bool) {
	return r.first("video")
}

// Audio returns the first audio stream.
func (r ProbeResult) Audio() (Stream, bool) {
	return r.first("audio")
}

func (r ProbeResult) first(kind string) (Stream, bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			return s, true
		}
	}
	return Stream{}, false
}

// FPS evaluates the "num/den" frame rate.
func (s Stream) FPS() float64 {
	num, den, ok := strings.Cut(s.AvgFrameRate, "/")
	if !ok {
		return parseFloat(s.AvgFrameRate)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return float64(int(n/d*100+0.5)) / 100
}

// KBPS returns the stream bitrate in kilobits per second.
func (s Stream) KBPS() float64 {
	return float64(int(parseFloat(s.BitRate)/1000 + 0.5))
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}

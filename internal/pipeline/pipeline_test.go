package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"spool/internal/media"
	"spool/internal/pipeline"
	"spool/internal/queue"
	"spool/internal/storage"
	"spool/internal/testsupport"
	"spool/internal/transcribe"
	"spool/internal/ytdlp"
)

type fakeFetcher struct {
	t        testing.TB
	mu       sync.Mutex
	requests []ytdlp.DownloadRequest
	err      error
	subs     []string
}

func (f *fakeFetcher) Download(_ context.Context, req ytdlp.DownloadRequest) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if req.Progress != nil {
		req.Progress(50)
		req.Progress(100)
	}
	ext := "mp4"
	if req.Audio {
		ext = req.AudioFormat
	}
	testsupport.WriteDownload(f.t, req.OutputDir, req.Filename, ext, f.subs...)
	return nil
}

func (f *fakeFetcher) Details(context.Context, string) (ytdlp.Details, error) {
	return ytdlp.Details{Duration: 1000, Height: 720, FPS: 30, ABR: 128}, nil
}

type fakeTranscoder struct {
	extractErr error
	wavSeen    string
}

func (f *fakeTranscoder) ExtractAudio(_ context.Context, _, dest, _ string) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(dest, []byte("audio"), 0o644)
}

func (f *fakeTranscoder) ExtractWAV(_ context.Context, _, dest string) error {
	f.wavSeen = dest
	return os.WriteFile(dest, []byte("wav"), 0o644)
}

func (f *fakeTranscoder) Probe(context.Context, string) (media.ProbeResult, error) {
	return media.ProbeResult{}, errors.New("not needed")
}

type fakeTranscriber struct {
	source string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req transcribe.Request) (transcribe.Result, error) {
	f.source = req.Audio
	if req.Progress != nil {
		req.Progress(40)
	}
	segments := []transcribe.Segment{{Start: 0, End: 1, Text: "halo"}, {Start: 1, End: 2, Text: "dunia"}}
	if err := transcribe.WriteSRT(req.Output, segments); err != nil {
		return transcribe.Result{}, err
	}
	return transcribe.Result{Path: req.Output, Language: "id", Segments: len(segments)}, nil
}

type recordingReporter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingReporter) Stage(_ context.Context, s queue.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(s))
}

func (r *recordingReporter) Progress(_ context.Context, s queue.Status, pct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(queue.StageStatus(s, pct)))
}

type harness struct {
	pipeline    *pipeline.Pipeline
	fetcher     *fakeFetcher
	transcoder  *fakeTranscoder
	transcriber *fakeTranscriber
	publishDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	publishDir := filepath.Join(t.TempDir(), "public")
	h := &harness{
		fetcher:     &fakeFetcher{t: t},
		transcoder:  &fakeTranscoder{},
		transcriber: &fakeTranscriber{},
		publishDir:  publishDir,
	}
	h.pipeline = pipeline.New(cfg, pipeline.Dependencies{
		Fetcher:     h.fetcher,
		Transcoder:  h.transcoder,
		Transcriber: h.transcriber,
		Publisher:   storage.NewLocal(publishDir, cfg.Storage.PublicBaseURL),
	}, nil)
	return h
}

func newJob(media queue.Media) *queue.Job {
	return &queue.Job{
		ID:          "job-1",
		URL:         "https://www.youtube.com/watch?v=abc123",
		Filename:    "clip",
		Media:       media,
		AudioFormat: "mp3",
		Status:      queue.StatusProcessing,
	}
}

func TestRunBothWithTranscription(t *testing.T) {
	h := newHarness(t)
	job := newJob(queue.MediaBoth)
	job.Transcribe = true
	job.TranscribeLang = "id"
	rep := &recordingReporter{}

	result, err := h.pipeline.Run(context.Background(), job, rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.VideoFile != "http://files.test/media/clip.mp4" {
		t.Fatalf("unexpected video file %q", result.VideoFile)
	}
	if result.AudioFile != "http://files.test/media/clip.mp3" {
		t.Fatalf("unexpected audio file %q", result.AudioFile)
	}
	if result.TranscriptFile != "http://files.test/media/clip.srt" || result.TranscriptLang != "id" {
		t.Fatalf("unexpected transcript %q/%q", result.TranscriptFile, result.TranscriptLang)
	}
	if result.PublicURL != result.VideoFile || result.Ext != "mp4" || result.Storage != "local" {
		t.Fatalf("unexpected primary fields %+v", result)
	}
	if result.Duration != 1000 || result.VideoQuality != "720p" || result.AudioQuality != "128kbps" {
		t.Fatalf("unexpected metadata %+v", result)
	}
	if !strings.HasSuffix(h.transcriber.source, "clip.mp3") {
		t.Fatalf("expected transcription from audio artifact, got %q", h.transcriber.source)
	}
	want := []string{"downloading", "downloading (50%)", "downloading (100%)", "extracting-audio", "transcribing (0%)", "transcribing (40%)", "uploading"}
	if strings.Join(rep.events, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected stage sequence %v", rep.events)
	}
}

func TestRunBothFallsBackToAudioFetch(t *testing.T) {
	h := newHarness(t)
	h.transcoder.extractErr = errors.New("ffmpeg exploded")

	result, err := h.pipeline.Run(context.Background(), newJob(queue.MediaBoth), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.fetcher.requests) != 2 || !h.fetcher.requests[1].Audio {
		t.Fatalf("expected fallback audio fetch, got %+v", h.fetcher.requests)
	}
	if result.AudioFile == "" || result.VideoFile == "" {
		t.Fatalf("expected both artifacts, got %+v", result)
	}
}

func TestRunVideoTranscriptionUsesTemporaryWAV(t *testing.T) {
	h := newHarness(t)
	job := newJob(queue.MediaVideo)
	job.Transcribe = true

	result, err := h.pipeline.Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.transcoder.wavSeen == "" || h.transcriber.source != h.transcoder.wavSeen {
		t.Fatalf("expected transcription from temporary wav, got %q", h.transcriber.source)
	}
	if _, err := os.Stat(h.transcoder.wavSeen); !os.IsNotExist(err) {
		t.Fatal("temporary wav should be removed")
	}
	if result.AudioFile != "" || result.TranscriptFile == "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunCollectsSubtitles(t *testing.T) {
	h := newHarness(t)
	h.fetcher.subs = []string{"en", "id"}
	job := newJob(queue.MediaVideo)
	job.IncludeSubs = true
	job.SubLangs = "en,id"

	result, err := h.pipeline.Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.SubtitleFiles) != 2 {
		t.Fatalf("expected two subtitle files, got %v", result.SubtitleFiles)
	}
	if !h.fetcher.requests[0].Subtitles || h.fetcher.requests[0].SubLangs != "en,id" {
		t.Fatalf("expected subtitle request, got %+v", h.fetcher.requests[0])
	}
}

func TestRunFetchFailurePublishesNothing(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = errors.New("HTTP Error 500")

	if _, err := h.pipeline.Run(context.Background(), newJob(queue.MediaVideo), nil); err == nil {
		t.Fatal("expected fetch error")
	}
	entries, _ := os.ReadDir(h.publishDir)
	if len(entries) != 0 {
		t.Fatalf("expected nothing published, found %d entries", len(entries))
	}
}

func TestRunIsIdempotentAcrossAttempts(t *testing.T) {
	h := newHarness(t)
	job := newJob(queue.MediaAudio)
	first, err := h.pipeline.Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := h.pipeline.Run(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.PublicURL != second.PublicURL {
		t.Fatalf("expected identical references, got %q and %q", first.PublicURL, second.PublicURL)
	}
	entries, _ := os.ReadDir(h.publishDir)
	if len(entries) != 1 {
		t.Fatalf("expected a single published file, found %d", len(entries))
	}
}

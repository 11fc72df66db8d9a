package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"spool/internal/config"
	"spool/internal/services"
	"spool/internal/toolexec"
)

var percentPattern = regexp.MustCompile(`(\d{1,3})%\|`)

// Options configures the recognizer CLI.
type Options struct {
	Binary      string
	Model       string
	DefaultLang string
	Device      string
}

// OptionsFromConfig maps the [transcribe] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Binary:      cfg.Transcribe.Binary,
		Model:       cfg.Transcribe.Model,
		DefaultLang: cfg.Transcribe.DefaultLang,
		Device:      cfg.Transcribe.Device,
	}
}

// Request describes one transcription.
type Request struct {
	Audio     string
	OutputDir string
	// Output is the caption file to write.
	Output   string
	Language string
	Prompt   string
	Progress func(percent float64)
}

// Result describes a finished transcription.
type Result struct {
	Path     string
	Language string
	Segments int
}

// Service runs the recognizer through a toolexec.Runner.
type Service struct {
	opts   Options
	runner toolexec.Runner
}

// NewService constructs a service. A nil runner uses os/exec.
func NewService(opts Options, runner toolexec.Runner) *Service {
	if opts.Binary == "" {
		opts.Binary = "whisper-ctranslate2"
	}
	if opts.Model == "" {
		opts.Model = "small"
	}
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Service{opts: opts, runner: runner}
}

// Binary returns the configured executable name.
func (s *Service) Binary() string { return s.opts.Binary }

// Transcribe runs the recognizer on req.Audio and writes req.Output as SRT.
func (s *Service) Transcribe(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Audio) == "" || strings.TrimSpace(req.Output) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "transcribe", "", "audio and output paths required", nil)
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(filepath.Dir(req.Output), ".transcribe")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "transcribe", "", "ensure output dir", err)
	}
	defer os.RemoveAll(outputDir)

	lang := NormalizeLanguage(req.Language, s.opts.DefaultLang)
	args := []string{
		req.Audio,
		"--model", s.opts.Model,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--verbose", "False",
	}
	if lang != "" {
		args = append(args, "--language", lang)
	}
	if s.opts.Device != "" && s.opts.Device != "auto" {
		args = append(args, "--device", s.opts.Device)
	}
	if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}

	_, err := s.runner.Run(ctx, toolexec.Command{
		Name:   s.opts.Binary,
		Args:   args,
		OnLine: progressLines(req.Progress),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", s.opts.Binary, "", err)
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(req.Audio), filepath.Ext(req.Audio))+".json")
	transcript, err := LoadTranscript(jsonPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "load segments", filepath.Base(jsonPath), err)
	}
	segments := Normalize(transcript.Segments)
	if err := WriteSRT(req.Output, segments); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "write captions", filepath.Base(req.Output), err)
	}

	detected := NormalizeLanguage(transcript.Language, "")
	if detected == "" {
		detected = lang
	}
	if detected == "" {
		detected = DetectLanguage(segments)
	}
	return Result{Path: req.Output, Language: detected, Segments: len(segments)}, nil
}

// Transcript is the recognizer's JSON document.
type Transcript struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Segment is one timed span of recognized text, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// LoadTranscript decodes the recognizer JSON output.
func LoadTranscript(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}

func progressLines(fn func(float64)) toolexec.LineFunc {
	if fn == nil {
		return nil
	}
	return func(_ toolexec.Stream, line string) {
		match := percentPattern.FindStringSubmatch(line)
		if len(match) < 2 {
			return
		}
		if pct, err := strconv.ParseFloat(match[1], 64); err == nil && pct <= 100 {
			fn(pct)
		}
	}
}

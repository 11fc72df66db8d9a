// Package ytdlp drives the yt-dlp fetch tool: argument building, streaming
// progress, flat channel listings, and metadata probes.
package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"spool/internal/config"
	"spool/internal/services"
	"spool/internal/toolexec"
)

const defaultFormat = "bv*+ba/b"

var percentPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)

// ProgressFunc receives each percentage marker parsed from tool output.
type ProgressFunc func(percent float64)

// Options are the process-wide fetch settings.
type Options struct {
	Binary        string
	JSRuntime     string
	SocketTimeout int
	UserAgent     string
	ExtractorArgs string
	SleepRequests int
	ForceIPv4     bool
	GeoBypass     bool
	DefaultFormat string
	MergeFormat   string
	// Cookies returns the cookies file to pass, or "" to omit.
	Cookies func() string
}

// OptionsFromConfig maps the [fetch] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Binary:        cfg.Fetch.Binary,
		JSRuntime:     cfg.Fetch.JSRuntime,
		SocketTimeout: cfg.Fetch.SocketTimeout,
		UserAgent:     cfg.Fetch.UserAgent,
		ExtractorArgs: cfg.Fetch.ExtractorArgs,
		SleepRequests: cfg.Fetch.SleepRequests,
		ForceIPv4:     cfg.Fetch.ForceIPv4,
		GeoBypass:     cfg.Fetch.GeoBypass,
		DefaultFormat: cfg.Fetch.DefaultFormat,
		MergeFormat:   cfg.Fetch.MergeFormat,
		Cookies:       cfg.CookiesFile,
	}
}

// Client runs yt-dlp through a toolexec.Runner.
type Client struct {
	opts   Options
	runner toolexec.Runner
}

// New constructs a client. A nil runner uses os/exec.
func New(opts Options, runner toolexec.Runner) *Client {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.DefaultFormat == "" {
		opts.DefaultFormat = defaultFormat
	}
	if opts.MergeFormat == "" {
		opts.MergeFormat = "mp4"
	}
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return &Client{opts: opts, runner: runner}
}

// Binary returns the configured executable name.
func (c *Client) Binary() string { return c.opts.Binary }

// DownloadRequest describes one fetch.
type DownloadRequest struct {
	URL       string
	OutputDir string
	Filename  string
	// Audio selects extract-audio mode; otherwise a muxed video is fetched.
	Audio       bool
	AudioFormat string
	Format      string
	Subtitles   bool
	SubLangs    string
	Progress    ProgressFunc
}

// OutputTemplate is the -o value for req; every artifact shares the prefix.
func (r DownloadRequest) OutputTemplate() string {
	return filepath.Join(r.OutputDir, r.Filename) + ".%(ext)s"
}

// Download runs one fetch to completion.
func (c *Client) Download(ctx context.Context, req DownloadRequest) error {
	if strings.TrimSpace(req.URL) == "" {
		return services.Wrap(services.ErrValidation, "fetch", "yt-dlp", "url required", nil)
	}
	args := c.DownloadArgs(req)
	_, err := c.runner.Run(ctx, toolexec.Command{
		Name:   c.opts.Binary,
		Args:   args,
		OnLine: progressLines(req.Progress),
	})
	if err != nil {
		return wrapRunError("fetch", err)
	}
	return nil
}

// DownloadArgs builds the argument vector for req.
func (c *Client) DownloadArgs(req DownloadRequest) []string {
	args := c.commonArgs()
	args = append(args, "--newline")
	if req.Audio {
		format := strings.TrimSpace(req.AudioFormat)
		if format == "" {
			format = "mp3"
		}
		args = append(args, "-x", "--audio-format", format)
	} else {
		format := strings.TrimSpace(req.Format)
		if format == "" {
			format = c.opts.DefaultFormat
		}
		args = append(args, "-f", format, "--merge-output-format", c.opts.MergeFormat)
		if req.Subtitles {
			args = append(args, "--write-subs", "--write-auto-subs", "--convert-subs", "srt")
			if langs := normalizeSubLangs(req.SubLangs); langs != "" {
				args = append(args, "--sub-langs", langs)
			}
		}
	}
	args = append(args, "-o", req.OutputTemplate(), "--", req.URL)
	return args
}

func (c *Client) commonArgs() []string {
	var args []string
	if cookies := c.cookies(); cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	if rt := strings.TrimSpace(c.opts.JSRuntime); rt != "" {
		args = append(args, "--js-runtimes", rt)
	}
	if c.opts.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	if c.opts.GeoBypass {
		args = append(args, "--geo-bypass")
	}
	if c.opts.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(c.opts.SocketTimeout))
	}
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		args = append(args, "--user-agent", ua)
	}
	if ea := strings.TrimSpace(c.opts.ExtractorArgs); ea != "" {
		args = append(args, "--extractor-args", ea)
	}
	if c.opts.SleepRequests > 0 {
		args = append(args, "--sleep-requests", strconv.Itoa(c.opts.SleepRequests))
	}
	return args
}

func (c *Client) cookies() string {
	if c.opts.Cookies == nil {
		return ""
	}
	return c.opts.Cookies()
}

// ParseProgress extracts the percentage marker from a tool output line.
func ParseProgress(line string) (float64, bool) {
	match := percentPattern.FindStringSubmatch(line)
	if len(match) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

func progressLines(fn ProgressFunc) toolexec.LineFunc {
	if fn == nil {
		return nil
	}
	// --newline sends progress to stdout; stderr carries warnings only.
	return func(stream toolexec.Stream, line string) {
		if stream != toolexec.StreamStdout {
			return
		}
		if pct, ok := ParseProgress(line); ok {
			fn(pct)
		}
	}
}

// Details is the subset of --dump-json metadata the pipeline records.
type Details struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	UploadDate string  `json:"upload_date"`
	LiveStatus string  `json:"live_status"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	ABR        float64 `json:"abr"`
	Ext        string  `json:"ext"`
}

// VideoQuality renders the height as "<h>p".
func (d Details) VideoQuality() string {
	if d.Height <= 0 {
		return ""
	}
	return strconv.Itoa(d.Height) + "p"
}

// AudioQuality renders the average bitrate as "<abr>kbps".
func (d Details) AudioQuality() string {
	if d.ABR <= 0 {
		return ""
	}
	return strconv.FormatFloat(d.ABR, 'f', -1, 64) + "kbps"
}

// Details probes url without downloading it.
func (c *Client) Details(ctx context.Context, url string) (Details, error) {
	args := append(c.commonArgs(), "--dump-json", "--skip-download", "--no-playlist", "--", url)
	out, err := c.runner.Run(ctx, toolexec.Command{Name: c.opts.Binary, Args: args, CaptureStdout: true})
	if err != nil {
		return Details{}, wrapRunError("probe", err)
	}
	var details Details
	line := firstJSONLine(out.Stdout)
	if line == "" {
		return Details{}, services.Wrap(services.ErrExternalTool, "probe", "yt-dlp", "no metadata in output", nil)
	}
	if err := json.Unmarshal([]byte(line), &details); err != nil {
		return Details{}, services.Wrap(services.ErrExternalTool, "probe", "yt-dlp", "decode metadata", err)
	}
	return details, nil
}

func firstJSONLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "{") {
			return trimmed
		}
	}
	return ""
}

func wrapRunError(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrExternalTool, stage, "yt-dlp", "", err)
}

func normalizeSubLangs(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, ",")
}

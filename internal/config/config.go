package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	LogDir      string `toml:"log_dir"`
	DataDir     string `toml:"data_dir"`
	CookiesPath string `toml:"cookies_path"`
}

// Store selects and locates the job store.
type Store struct {
	Backend    string `toml:"backend"`
	URL        string `toml:"url"`
	SQLitePath string `toml:"sqlite_path"`
	QueueName  string `toml:"queue_name"`
	PopTimeout int    `toml:"pop_timeout"`
}

// Workers contains worker pool and attempt loop settings.
type Workers struct {
	Count                int  `toml:"count"`
	MaxRetries           int  `toml:"max_retries"`
	JobTimeout           int  `toml:"job_timeout"`
	BackoffBase          int  `toml:"backoff_base"`
	BackoffMax           int  `toml:"backoff_max"`
	LivenessInterval     int  `toml:"liveness_interval"`
	ShutdownGrace        int  `toml:"shutdown_grace"`
	HeartbeatInterval    int  `toml:"heartbeat_interval"`
	StaleAfterMultiplier int  `toml:"stale_after_multiplier"`
	ReapStale            bool `toml:"reap_stale"`
}

// Fetch configures the yt-dlp invocation.
type Fetch struct {
	Binary        string `toml:"binary"`
	JSRuntime     string `toml:"js_runtime"`
	SocketTimeout int    `toml:"socket_timeout"`
	UserAgent     string `toml:"user_agent"`
	ExtractorArgs string `toml:"extractor_args"`
	SleepRequests int    `toml:"sleep_requests"`
	ForceIPv4     bool   `toml:"force_ipv4"`
	GeoBypass     bool   `toml:"geo_bypass"`
	DefaultFormat string `toml:"default_format"`
	MergeFormat   string `toml:"merge_format"`
}

// Media configures ffmpeg and ffprobe.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Transcribe configures the whisper CLI.
type Transcribe struct {
	Binary      string `toml:"binary"`
	Model       string `toml:"model"`
	DefaultLang string `toml:"default_lang"`
	Device      string `toml:"device"`
}

// Storage configures artifact publication.
type Storage struct {
	Backend           string `toml:"backend"`
	Endpoint          string `toml:"endpoint"`
	AccessKey         string `toml:"access_key"`
	SecretKey         string `toml:"secret_key"`
	Bucket            string `toml:"bucket"`
	Secure            bool   `toml:"secure"`
	PublicBaseURL     string `toml:"public_base_url"`
	LocalDir          string `toml:"local_dir"`
	AutoDeleteLocal   bool   `toml:"auto_delete_local"`
	UploadConcurrency int    `toml:"upload_concurrency"`
}

// Watcher contains channel watcher filter defaults.
type Watcher struct {
	MinDuration  int  `toml:"min_duration"`
	SkipShorts   bool `toml:"skip_shorts"`
	DefaultLimit int  `toml:"default_limit"`
}

// Watch is one scheduled channel scan.
type Watch struct {
	URL     string `toml:"url"`
	Cron    string `toml:"cron"`
	Track   bool   `toml:"track"`
	Enqueue bool   `toml:"enqueue"`
	Limit   int    `toml:"limit"`
	Media   string `toml:"media"`
}

// API configures the submission/status HTTP server.
type API struct {
	Bind               string `toml:"bind"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
}

// Callback configures completion callbacks.
type Callback struct {
	Timeout int `toml:"timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for spool.
//
// Configuration sections by subsystem:
//   - Paths: download, log, and data directories plus the fetch cookies file
//   - Store: job store backend and dispatch queue name
//   - Workers: pool size, retry budget, timeouts, and backoff
//   - Fetch/Media/Transcribe: external tool settings
//   - Storage: object store or local artifact publication
//   - Watcher/Watches: channel scan filters and cron schedules
//   - API/Callback/Logging: outer surfaces
type Config struct {
	Paths      Paths      `toml:"paths"`
	Store      Store      `toml:"store"`
	Workers    Workers    `toml:"workers"`
	Fetch      Fetch      `toml:"fetch"`
	Media      Media      `toml:"media"`
	Transcribe Transcribe `toml:"transcribe"`
	Storage    Storage    `toml:"storage"`
	Watcher    Watcher    `toml:"watcher"`
	Watches    []Watch    `toml:"watch"`
	API        API        `toml:"api"`
	Callback   Callback   `toml:"callback"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	loadDotEnv()
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("spool.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for worker operation.
// The cookies directory is created on a best-effort basis so a mounted
// cookies file can be dropped in later.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.LogDir, c.Paths.DataDir, c.Storage.LocalDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.CookiesPath) != "" {
		_ = os.MkdirAll(filepath.Dir(c.Paths.CookiesPath), 0o755)
	}
	return nil
}

// CookiesFile returns the cookies path when the file exists.
func (c *Config) CookiesFile() string {
	path := strings.TrimSpace(c.Paths.CookiesPath)
	if path == "" {
		return ""
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}

// JobTimeout returns the per-attempt wall-clock limit.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Workers.JobTimeout) * time.Second
}

// BackoffBase returns the retry backoff base.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Workers.BackoffBase) * time.Second
}

// BackoffMax returns the retry backoff cap.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Workers.BackoffMax) * time.Second
}

// PopTimeout returns the blocking pop wait used by worker loops.
func (c *Config) PopTimeout() time.Duration {
	return time.Duration(c.Store.PopTimeout) * time.Second
}

// LivenessInterval returns how often the supervisor checks worker loops.
func (c *Config) LivenessInterval() time.Duration {
	return time.Duration(c.Workers.LivenessInterval) * time.Second
}

// ShutdownGrace returns how long shutdown waits for in-flight jobs.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Workers.ShutdownGrace) * time.Second
}

// HeartbeatInterval returns the heartbeat refresh period during attempts.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workers.HeartbeatInterval) * time.Second
}

// StaleAfter returns the heartbeat age after which a running job is considered lost.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Workers.StaleAfterMultiplier) * c.JobTimeout()
}

// CallbackTimeout returns the HTTP timeout for completion callbacks.
func (c *Config) CallbackTimeout() time.Duration {
	return time.Duration(c.Callback.Timeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

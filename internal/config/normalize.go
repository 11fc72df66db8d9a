package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads ./.env when present. Variables already set in the
// environment win over file entries.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeWorkers()
	c.normalizeFetch()
	c.normalizeTranscribe()
	c.normalizeStorage()
	c.normalizeWatches()
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if c.Callback.Timeout <= 0 {
		c.Callback.Timeout = defaultCallbackTimeout
	}
	return nil
}

// applyEnv overlays the environment-style configuration surface used by
// container deployments. Environment values take precedence over the file.
func (c *Config) applyEnv() error {
	strs := []struct {
		name   string
		target *string
	}{
		{"REDIS_URL", &c.Store.URL},
		{"STORE_BACKEND", &c.Store.Backend},
		{"QUEUE_NAME", &c.Store.QueueName},
		{"DOWNLOAD_DIR", &c.Paths.DownloadDir},
		{"COOKIES_PATH", &c.Paths.CookiesPath},
		{"MINIO_ENDPOINT", &c.Storage.Endpoint},
		{"MINIO_ACCESS_KEY", &c.Storage.AccessKey},
		{"MINIO_SECRET_KEY", &c.Storage.SecretKey},
		{"MINIO_BUCKET", &c.Storage.Bucket},
		{"PUBLIC_BASE_URL", &c.Storage.PublicBaseURL},
		{"STORAGE_BACKEND", &c.Storage.Backend},
		{"API_BIND", &c.API.Bind},
		{"WHISPER_MODEL", &c.Transcribe.Model},
		{"LOG_LEVEL", &c.Logging.Level},
		{"LOG_FORMAT", &c.Logging.Format},
	}
	for _, s := range strs {
		if value, ok := os.LookupEnv(s.name); ok && strings.TrimSpace(value) != "" {
			*s.target = strings.TrimSpace(value)
		}
	}

	ints := []struct {
		name   string
		target *int
	}{
		{"WORKER_COUNT", &c.Workers.Count},
		{"MAX_RETRIES", &c.Workers.MaxRetries},
		{"JOB_TIMEOUT", &c.Workers.JobTimeout},
		{"BACKOFF_BASE", &c.Workers.BackoffBase},
		{"BACKOFF_MAX", &c.Workers.BackoffMax},
		{"MIN_DURATION", &c.Watcher.MinDuration},
	}
	for _, i := range ints {
		value, ok := os.LookupEnv(i.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: expected integer, got %q", i.name, value)
		}
		*i.target = parsed
	}

	bools := []struct {
		name   string
		target *bool
	}{
		{"AUTO_DELETE_LOCAL", &c.Storage.AutoDeleteLocal},
		{"MINIO_SECURE", &c.Storage.Secure},
	}
	for _, b := range bools {
		value, ok := os.LookupEnv(b.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(value))
		*b.target = v == "true" || v == "1" || v == "yes"
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.CookiesPath, err = expandPath(strings.TrimSpace(c.Paths.CookiesPath)); err != nil {
		return fmt.Errorf("paths.cookies_path: %w", err)
	}
	if c.Storage.LocalDir, err = expandPath(strings.TrimSpace(c.Storage.LocalDir)); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = c.Paths.DownloadDir
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteFile)
	}
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	c.Store.URL = strings.TrimSpace(c.Store.URL)
	if c.Store.URL == "" {
		c.Store.URL = defaultStoreURL
	}
	c.Store.QueueName = strings.TrimSpace(c.Store.QueueName)
	if c.Store.QueueName == "" {
		c.Store.QueueName = defaultQueueName
	}
	if c.Store.PopTimeout <= 0 {
		c.Store.PopTimeout = defaultPopTimeout
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.LivenessInterval <= 0 {
		c.Workers.LivenessInterval = defaultLivenessInterval
	}
	if c.Workers.ShutdownGrace <= 0 {
		c.Workers.ShutdownGrace = defaultShutdownGrace
	}
	if c.Workers.HeartbeatInterval <= 0 {
		c.Workers.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workers.StaleAfterMultiplier <= 0 {
		c.Workers.StaleAfterMultiplier = defaultStaleAfterMultiplier
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.Binary = strings.TrimSpace(c.Fetch.Binary)
	if c.Fetch.Binary == "" {
		c.Fetch.Binary = defaultFetchBinary
	}
	c.Fetch.JSRuntime = strings.ToLower(strings.TrimSpace(c.Fetch.JSRuntime))
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	c.Fetch.ExtractorArgs = strings.TrimSpace(c.Fetch.ExtractorArgs)
	if strings.TrimSpace(c.Fetch.DefaultFormat) == "" {
		c.Fetch.DefaultFormat = defaultFetchFormat
	}
	if strings.TrimSpace(c.Fetch.MergeFormat) == "" {
		c.Fetch.MergeFormat = defaultMergeFormat
	}
	if strings.TrimSpace(c.Media.FFmpegBinary) == "" {
		c.Media.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Media.FFprobeBinary) == "" {
		c.Media.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeTranscribe() {
	c.Transcribe.Binary = strings.TrimSpace(c.Transcribe.Binary)
	if c.Transcribe.Binary == "" {
		c.Transcribe.Binary = defaultWhisperBinary
	}
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	if c.Transcribe.Model == "" {
		c.Transcribe.Model = defaultWhisperModel
	}
	c.Transcribe.DefaultLang = strings.ToLower(strings.TrimSpace(c.Transcribe.DefaultLang))
	c.Transcribe.Device = strings.ToLower(strings.TrimSpace(c.Transcribe.Device))
	if c.Transcribe.Device == "" {
		c.Transcribe.Device = "auto"
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.PublicBaseURL = strings.TrimSpace(c.Storage.PublicBaseURL)
	if c.Storage.UploadConcurrency <= 0 {
		c.Storage.UploadConcurrency = defaultUploadConcurrency
	}
	if c.Watcher.DefaultLimit <= 0 {
		c.Watcher.DefaultLimit = defaultWatcherLimit
	}
}

func (c *Config) normalizeWatches() {
	for i := range c.Watches {
		w := &c.Watches[i]
		w.URL = strings.TrimSpace(w.URL)
		w.Cron = strings.TrimSpace(w.Cron)
		w.Media = strings.ToLower(strings.TrimSpace(w.Media))
		if w.Media == "" {
			w.Media = "video"
		}
		if w.Limit <= 0 {
			w.Limit = c.Watcher.DefaultLimit
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

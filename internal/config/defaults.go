package config

const (
	defaultConfigPath           = "~/.config/spool/config.toml"
	defaultDownloadDir          = "~/.local/share/spool/downloads"
	defaultLogDir               = "~/.local/share/spool/logs"
	defaultDataDir              = "~/.local/share/spool/data"
	defaultCookiesPath          = "~/.config/spool/cookies/cookies.txt"
	defaultStoreBackend         = StoreBackendRedis
	defaultStoreURL             = "redis://127.0.0.1:6379/0"
	defaultSQLiteFile           = "spool.db"
	defaultQueueName            = "yt_queue"
	defaultPopTimeout           = 5
	defaultWorkerCount          = 2
	defaultMaxRetries           = 3
	defaultJobTimeout           = 1800
	defaultBackoffBase          = 5
	defaultBackoffMax           = 300
	defaultLivenessInterval     = 5
	defaultShutdownGrace        = 30
	defaultHeartbeatInterval    = 15
	defaultStaleAfterMultiplier = 2
	defaultFetchBinary          = "yt-dlp"
	defaultSocketTimeout        = 30
	defaultFetchFormat          = "bv*+ba/b"
	defaultMergeFormat          = "mp4"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultWhisperBinary        = "whisper-ctranslate2"
	defaultWhisperModel         = "small"
	defaultTranscribeLang       = "id"
	defaultStorageBackend       = StorageBackendLocal
	defaultBucket               = "media"
	defaultUploadConcurrency    = 2
	defaultWatcherLimit         = 1
	defaultAPIBind              = "127.0.0.1:8000"
	defaultRateLimitPerMinute   = 60
	defaultCallbackTimeout      = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Store and storage backend names.
const (
	StoreBackendRedis         = "redis"
	StoreBackendSQLite        = "sqlite"
	StorageBackendObjectStore = "object-store"
	StorageBackendLocal       = "local"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
			DataDir:     defaultDataDir,
			CookiesPath: defaultCookiesPath,
		},
		Store: Store{
			Backend:    defaultStoreBackend,
			URL:        defaultStoreURL,
			QueueName:  defaultQueueName,
			PopTimeout: defaultPopTimeout,
		},
		Workers: Workers{
			Count:                defaultWorkerCount,
			MaxRetries:           defaultMaxRetries,
			JobTimeout:           defaultJobTimeout,
			BackoffBase:          defaultBackoffBase,
			BackoffMax:           defaultBackoffMax,
			LivenessInterval:     defaultLivenessInterval,
			ShutdownGrace:        defaultShutdownGrace,
			HeartbeatInterval:    defaultHeartbeatInterval,
			StaleAfterMultiplier: defaultStaleAfterMultiplier,
		},
		Fetch: Fetch{
			Binary:        defaultFetchBinary,
			JSRuntime:     "node",
			SocketTimeout: defaultSocketTimeout,
			ForceIPv4:     true,
			GeoBypass:     true,
			DefaultFormat: defaultFetchFormat,
			MergeFormat:   defaultMergeFormat,
		},
		Media: Media{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Transcribe: Transcribe{
			Binary:      defaultWhisperBinary,
			Model:       defaultWhisperModel,
			DefaultLang: defaultTranscribeLang,
			Device:      "auto",
		},
		Storage: Storage{
			Backend:           defaultStorageBackend,
			Bucket:            defaultBucket,
			AutoDeleteLocal:   true,
			UploadConcurrency: defaultUploadConcurrency,
		},
		Watcher: Watcher{
			SkipShorts:   true,
			DefaultLimit: defaultWatcherLimit,
		},
		API: API{
			Bind:               defaultAPIBind,
			RateLimitPerMinute: defaultRateLimitPerMinute,
		},
		Callback: Callback{
			Timeout: defaultCallbackTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

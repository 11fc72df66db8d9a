package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// CronParser is the schedule parser shared by validation and the scheduler.
// Expressions accept an optional leading seconds field and descriptors such
// as @hourly.
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWatches(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendRedis:
		if c.Store.URL == "" {
			return errors.New("store.url must be set for the redis backend (or set REDIS_URL)")
		}
	case StoreBackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path must be set for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend: unsupported value %q (expected redis or sqlite)", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 1 {
		return errors.New("workers.count must be at least 1")
	}
	if c.Workers.MaxRetries < 1 {
		return errors.New("workers.max_retries must be at least 1")
	}
	if c.Workers.JobTimeout <= 0 {
		return errors.New("workers.job_timeout must be positive")
	}
	if c.Workers.BackoffBase <= 0 {
		return errors.New("workers.backoff_base must be positive")
	}
	if c.Workers.BackoffMax < c.Workers.BackoffBase {
		return fmt.Errorf("workers.backoff_max (%d) must be >= workers.backoff_base (%d)", c.Workers.BackoffMax, c.Workers.BackoffBase)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendLocal:
		return nil
	case StorageBackendObjectStore:
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set for the object-store backend (or set MINIO_ENDPOINT)")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the object-store backend")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected object-store or local)", c.Storage.Backend)
	}
}

func (c *Config) validateWatches() error {
	for i, w := range c.Watches {
		if w.URL == "" {
			return fmt.Errorf("watch[%d].url must be set", i)
		}
		if w.Cron == "" {
			return fmt.Errorf("watch[%d].cron must be set", i)
		}
		if _, err := CronParser.Parse(w.Cron); err != nil {
			return fmt.Errorf("watch[%d].cron: %w", i, err)
		}
		switch w.Media {
		case "video", "audio", "both":
		default:
			return fmt.Errorf("watch[%d].media: unsupported value %q", i, w.Media)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json", "auto":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

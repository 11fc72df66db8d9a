// Package queueaccess opens the configured job store backend.
package queueaccess

import (
	"context"
	"fmt"
	"log/slog"

	"spool/internal/config"
	"spool/internal/queue"
	"spool/internal/queue/redisstore"
	"spool/internal/queue/sqlitestore"
)

// Dialer returns the dialer for cfg.Store.Backend.
func Dialer(cfg *config.Config) (queue.Dialer, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		return redisstore.Dialer(cfg.Store.URL), nil
	case config.StoreBackendSQLite:
		return sqlitestore.Dialer(cfg.Store.SQLitePath), nil
	default:
		return nil, fmt.Errorf("store.backend: unsupported value %q", cfg.Store.Backend)
	}
}

// Describe returns the backend location for logs and status output.
func Describe(cfg *config.Config) string {
	if cfg.Store.Backend == config.StoreBackendSQLite {
		return "sqlite:" + cfg.Store.SQLitePath
	}
	return redactURL(cfg.Store.URL)
}

// Open dials the configured store and verifies it answers.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*queue.Client, queue.Dialer, error) {
	dial, err := Dialer(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := queue.NewClient(ctx, dial, cfg.Store.QueueName, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open job store %s: %w", Describe(cfg), err)
	}
	return client, dial, nil
}

package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"spool/internal/api"
	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/queueaccess"
	"spool/internal/watcher"
	"spool/internal/ytdlp"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// queueSession is a short-lived store connection for one CLI invocation.
type queueSession struct {
	cfg     *config.Config
	client  *queue.Client
	service *api.QueueService
}

// withQueue opens the job store, wires a QueueService with a live channel
// watcher and runs fn.
func (c *commandContext) withQueue(ctx context.Context, fn func(*queueSession) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := logging.NewNop()
	client, _, err := queueaccess.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	scanner := watcher.New(ytdlp.New(ytdlp.OptionsFromConfig(cfg), nil), client, logger)
	return fn(&queueSession{
		cfg:     cfg,
		client:  client,
		service: api.NewQueueService(cfg, client, scanner, logger),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

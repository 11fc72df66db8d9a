// Package daemonrun bootstraps a spool process: signals, logging, PID file,
// job store connection and component wiring.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"spool/internal/api"
	"spool/internal/config"
	"spool/internal/daemon"
	"spool/internal/logging"
	"spool/internal/media"
	"spool/internal/notifications"
	"spool/internal/pipeline"
	"spool/internal/preflight"
	"spool/internal/queue"
	"spool/internal/queueaccess"
	"spool/internal/scheduler"
	"spool/internal/storage"
	"spool/internal/supervisor"
	"spool/internal/transcribe"
	"spool/internal/watcher"
	"spool/internal/workflow"
	"spool/internal/ytdlp"
)

// Process roles.
const (
	RoleRun    = "run"
	RoleWorker = "worker"
	RoleServe  = "serve"
)

// Options configures process runtime behavior.
type Options struct {
	Role        string
	LogLevel    string
	Development bool
}

// Run starts the process for opts.Role and blocks until a signal arrives or
// the worker pool fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	role := opts.Role
	if role == "" {
		role = RoleRun
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := newLogger(cfg, role, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("spool-%s.pid", role))
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	client, dial, err := queueaccess.Open(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "job store unavailable at startup", "store_unavailable",
			logging.Error(err),
			logging.String("store", queueaccess.Describe(cfg)),
			logging.String(logging.FieldErrorHint, "check store.backend and store.url"),
		)
		return err
	}
	defer client.Close()

	parts, err := Build(signalCtx, cfg, role, client, dial, logger)
	if err != nil {
		return err
	}
	d, err := daemon.New(cfg, role, parts, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	poolDone := make(chan error, 1)
	go func() { poolDone <- d.Wait() }()

	var runErr error
	if parts.Pool != nil {
		select {
		case <-signalCtx.Done():
		case runErr = <-poolDone:
		}
	} else {
		<-signalCtx.Done()
	}
	logger.Info("spool shutting down")
	d.Stop()
	if runErr == nil && parts.Pool != nil {
		runErr = d.Wait()
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func newLogger(cfg *config.Config, role string, opts Options) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg, role, logging.Options{
		Level:       opts.LogLevel,
		Development: opts.Development,
	})
	if err != nil {
		return nil, err
	}
	return logger.With(logging.String("role", role)), nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	statuses := preflight.CheckSystemDeps(cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("store", queueaccess.Describe(cfg)),
		logging.String("storage_backend", cfg.Storage.Backend),
	}
	for _, s := range statuses {
		key := strings.ToLower(s.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", s.Available),
			logging.String(key+"_binary", s.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, s := range statuses {
		if s.Available || s.Optional {
			continue
		}
		logging.WarnWithContext(logger, "required tool missing", "dependency_missing",
			logging.String("tool", s.Name),
			logging.String("detail", s.Detail),
			logging.String(logging.FieldImpact, "jobs fail on every attempt until the tool is installed"),
		)
	}
}

// Build assembles the components role needs. client serves the API and the
// watcher; dial gives each worker loop its own connection.
func Build(ctx context.Context, cfg *config.Config, role string, client *queue.Client, dial queue.Dialer, logger *slog.Logger) (daemon.Components, error) {
	switch role {
	case RoleRun, RoleWorker, RoleServe:
	default:
		return daemon.Components{}, fmt.Errorf("unknown role %q", role)
	}

	parts := daemon.Components{
		Probes: map[string]func(context.Context) error{
			"store": client.Ping,
		},
	}
	fetcher := ytdlp.New(ytdlp.OptionsFromConfig(cfg), nil)
	scanner := watcher.New(fetcher, client, logger)

	if role == RoleRun || role == RoleWorker {
		publisher, err := storage.New(ctx, cfg)
		if err != nil {
			return parts, fmt.Errorf("init storage: %w", err)
		}
		parts.Probes["storage"] = publisher.Check

		p := pipeline.New(cfg, pipeline.Dependencies{
			Fetcher:     fetcher,
			Transcoder:  media.NewTranscoder(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary, nil),
			Transcriber: transcribe.NewService(transcribe.OptionsFromConfig(cfg), nil),
			Publisher:   publisher,
		}, logger)
		runner := workflow.NewRunner(cfg, p, notifications.NewService(cfg), logger)
		parts.Pool = supervisor.New(cfg, dial, runner, logger)
	}

	if role == RoleRun || role == RoleServe {
		svc := api.NewQueueService(cfg, client, scanner, logger)
		parts.API = api.NewServer(cfg, svc, logger)
	}

	if role == RoleRun && len(cfg.Watches) > 0 {
		sched, err := scheduler.New(cfg, scanner, logger)
		if err != nil {
			return parts, err
		}
		parts.Scheduler = sched
	}
	return parts, nil
}

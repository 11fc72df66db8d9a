package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"spool/internal/api"
	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/scheduler"
	"spool/internal/stage"
	"spool/internal/supervisor"
)

// Components are the services a daemon runs. Nil members are skipped.
type Components struct {
	Pool      *supervisor.Supervisor
	API       *api.Server
	Scheduler *scheduler.Scheduler
	// Probes report collaborator readiness in Status.
	Probes map[string]func(context.Context) error
}

// Daemon owns the process lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	role   string
	parts  Components

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	poolWG  sync.WaitGroup
	poolErr error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Role         string
	PID          int
	LockFilePath string
	Workers      []supervisor.WorkerStatus
	Watches      []scheduler.Entry
	Health       []stage.Health
}

// New constructs a daemon for role ("run", "worker" or "serve").
func New(cfg *config.Config, role string, parts Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if parts.Pool == nil && parts.API == nil && parts.Scheduler == nil {
		return nil, errors.New("daemon requires at least one component")
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, fmt.Sprintf("spool-%s.lock", role))
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		role:     role,
		parts:    parts,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the lock and launches every component.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another spool %s instance is already running", d.role)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.parts.API != nil {
		if err := d.parts.API.Start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start api: %w", err)
		}
	}
	if d.parts.Scheduler != nil {
		d.parts.Scheduler.Start(runCtx)
	}
	if d.parts.Pool != nil {
		d.poolWG.Add(1)
		go func() {
			defer d.poolWG.Done()
			if err := d.parts.Pool.Run(runCtx); err != nil {
				d.poolErr = err
				logging.ErrorWithContext(d.logger, "worker pool stopped with error", "pool_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check job store connectivity"),
				)
				cancel()
			}
		}()
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("spool daemon started",
		logging.String("role", d.role),
		logging.String("lock", d.lockPath),
		logging.Bool("pool", d.parts.Pool != nil),
		logging.Bool("api", d.parts.API != nil),
		logging.Bool("scheduler", d.parts.Scheduler != nil),
	)
	return nil
}

// Wait blocks until the pool has drained, then returns its error.
func (d *Daemon) Wait() error {
	d.poolWG.Wait()
	return d.poolErr
}

// Stop cancels every component, waits for the pool and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.poolWG.Wait()
	if d.parts.Scheduler != nil {
		d.parts.Scheduler.Stop()
	}
	if d.parts.API != nil {
		if err := d.parts.API.Shutdown(); err != nil {
			d.logger.Warn("api shutdown failed", logging.Error(err))
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("spool daemon stopped", logging.String("role", d.role))
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		Role:         d.role,
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
	}
	if d.parts.Pool != nil {
		st.Workers = d.parts.Pool.Status()
	}
	if d.parts.Scheduler != nil {
		st.Watches = d.parts.Scheduler.Entries()
	}
	for name, probe := range d.parts.Probes {
		st.Health = append(st.Health, stage.Probe(ctx, name, probe))
	}
	slices.SortFunc(st.Health, func(a, b stage.Health) int { return strings.Compare(a.Name, b.Name) })
	return st
}

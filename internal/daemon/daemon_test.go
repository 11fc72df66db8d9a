package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"spool/internal/daemon"
	"spool/internal/logging"
	"spool/internal/supervisor"
	"spool/internal/testsupport"
	"spool/internal/workflow"
)

type idleProcessor struct{}

func (idleProcessor) Process(context.Context, workflow.JobStore, string) (workflow.Outcome, error) {
	return workflow.Outcome{}, nil
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2, 1))
	pool := supervisor.New(cfg, testsupport.StoreDialer(cfg), idleProcessor{}, logging.NewNop(),
		supervisor.WithPopTimeout(50*time.Millisecond),
		supervisor.WithIntervals(50*time.Millisecond, time.Second),
	)
	d, err := daemon.New(cfg, "worker", daemon.Components{
		Pool: pool,
		Probes: map[string]func(context.Context) error{
			"store":   func(context.Context) error { return nil },
			"storage": func(context.Context) error { return errors.New("bucket missing") },
		},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || status.Role != "worker" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.Health) != 2 || status.Health[0].Name != "storage" || status.Health[0].Ready || !status.Health[1].Ready {
		t.Fatalf("unexpected health: %+v", status.Health)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, err := daemon.New(cfg, "worker", daemon.Components{Pool: pool}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected lock contention to fail the second instance")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := d.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestDaemonRequiresComponent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, "run", daemon.Components{}, logging.NewNop()); err == nil {
		t.Fatal("expected error without components")
	}
}

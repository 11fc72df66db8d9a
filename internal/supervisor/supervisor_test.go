package supervisor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/supervisor"
	"spool/internal/testsupport"
	"spool/internal/workflow"
)

type processFunc func(ctx context.Context, store workflow.JobStore, id string) (workflow.Outcome, error)

func (f processFunc) Process(ctx context.Context, store workflow.JobStore, id string) (workflow.Outcome, error) {
	return f(ctx, store, id)
}

type seenIDs struct {
	mu  sync.Mutex
	ids map[string]int
}

func (s *seenIDs) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = make(map[string]int)
	}
	s.ids[id]++
}

func (s *seenIDs) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func start(t *testing.T, sup *supervisor.Supervisor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func waitExit(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(15 * time.Second):
		t.Fatal("supervisor did not stop")
		return nil
	}
}

func TestRunProcessesQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(3, 1))
	client := testsupport.MustOpenClient(t, cfg)
	for range 5 {
		testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=abc123")
	}

	seen := &seenIDs{}
	proc := processFunc(func(_ context.Context, _ workflow.JobStore, id string) (workflow.Outcome, error) {
		seen.add(id)
		return workflow.Outcome{Status: queue.StatusDone, Attempts: 1}, nil
	})
	sup := supervisor.New(cfg, testsupport.StoreDialer(cfg), proc, logging.NewNop(),
		supervisor.WithPopTimeout(50*time.Millisecond),
		supervisor.WithIntervals(50*time.Millisecond, time.Second),
	)
	cancel, errCh := start(t, sup)

	waitFor(t, 5*time.Second, func() bool { return seen.len() == 5 })
	if got := len(sup.Status()); got != 3 {
		t.Fatalf("expected 3 workers, got %d", got)
	}
	cancel()
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	for id, n := range seen.ids {
		if n != 1 {
			t.Fatalf("job %s processed %d times", id, n)
		}
	}
}

func TestRunRestartsPanickedLoop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1, 1))
	client := testsupport.MustOpenClient(t, cfg)
	first := testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=first")
	second := testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=second")

	seen := &seenIDs{}
	proc := processFunc(func(_ context.Context, _ workflow.JobStore, id string) (workflow.Outcome, error) {
		seen.add(id)
		if id == first {
			panic("boom")
		}
		return workflow.Outcome{Status: queue.StatusDone, Attempts: 1}, nil
	})
	sup := supervisor.New(cfg, testsupport.StoreDialer(cfg), proc, logging.NewNop(),
		supervisor.WithPopTimeout(50*time.Millisecond),
		supervisor.WithIntervals(50*time.Millisecond, time.Second),
	)
	cancel, errCh := start(t, sup)

	waitFor(t, 5*time.Second, func() bool {
		seen.mu.Lock()
		defer seen.mu.Unlock()
		return seen.ids[second] == 1
	})
	status := sup.Status()
	if len(status) != 1 || status[0].Restarts != 1 {
		t.Fatalf("expected one restart, got %+v", status)
	}
	cancel()
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestShutdownWaitsForInFlightJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1, 1))
	client := testsupport.MustOpenClient(t, cfg)
	testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=abc123")

	started := make(chan struct{})
	var jobErr error
	done := make(chan struct{})
	proc := processFunc(func(ctx context.Context, _ workflow.JobStore, _ string) (workflow.Outcome, error) {
		close(started)
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			jobErr = ctx.Err()
		}
		close(done)
		return workflow.Outcome{Status: queue.StatusDone, Attempts: 1}, nil
	})
	sup := supervisor.New(cfg, testsupport.StoreDialer(cfg), proc, logging.NewNop(),
		supervisor.WithPopTimeout(50*time.Millisecond),
		supervisor.WithIntervals(50*time.Millisecond, 5*time.Second),
	)
	cancel, errCh := start(t, sup)

	<-started
	cancel()
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	<-done
	if jobErr != nil {
		t.Fatalf("in-flight job was cancelled: %v", jobErr)
	}
}

func TestShutdownCancelsJobAfterGrace(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1, 1))
	client := testsupport.MustOpenClient(t, cfg)
	testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=abc123")

	started := make(chan struct{})
	cancelled := make(chan error, 1)
	proc := processFunc(func(ctx context.Context, _ workflow.JobStore, _ string) (workflow.Outcome, error) {
		close(started)
		<-ctx.Done()
		cancelled <- ctx.Err()
		return workflow.Outcome{Status: queue.StatusProcessing, Interrupted: true}, nil
	})
	sup := supervisor.New(cfg, testsupport.StoreDialer(cfg), proc, logging.NewNop(),
		supervisor.WithPopTimeout(50*time.Millisecond),
		supervisor.WithIntervals(50*time.Millisecond, 100*time.Millisecond),
	)
	cancel, errCh := start(t, sup)

	<-started
	cancel()
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if err := <-cancelled; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected job context cancelled, got %v", err)
	}
}

func TestRunFailsWhenStoreUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dial := func(context.Context) (queue.Store, error) {
		return nil, errors.New("connection refused")
	}
	proc := processFunc(func(context.Context, workflow.JobStore, string) (workflow.Outcome, error) {
		t.Fatal("no job should be processed")
		return workflow.Outcome{}, nil
	})
	sup := supervisor.New(cfg, dial, proc, logging.NewNop())
	if err := sup.Run(context.Background()); err == nil {
		t.Fatal("expected startup error")
	}
}

func TestRunStoppedDuringStartupIsClean(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dialing := make(chan struct{})
	var once sync.Once
	dial := func(ctx context.Context) (queue.Store, error) {
		once.Do(func() { close(dialing) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	proc := processFunc(func(context.Context, workflow.JobStore, string) (workflow.Outcome, error) {
		t.Fatal("no job should be processed")
		return workflow.Outcome{}, nil
	})
	sup := supervisor.New(cfg, dial, proc, logging.NewNop())
	cancel, errCh := start(t, sup)
	<-dialing
	cancel()
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("stop during startup should be clean, got %v", err)
	}
}

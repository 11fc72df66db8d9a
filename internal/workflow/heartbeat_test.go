package workflow_test

import (
	"context"
	"testing"
	"time"

	"spool/internal/pipeline"
	"spool/internal/queue"
	"spool/internal/testsupport"
	"spool/internal/workflow"
)

func TestReapStaleFailsAbandonedJobs(t *testing.T) {
	f := newFixture(t, func(context.Context, pipeline.Reporter, int) (queue.Result, error) {
		return queue.Result{}, nil
	})
	ctx := context.Background()
	now := time.Now()

	abandoned := f.enqueue(t)
	fresh := testsupport.NewJob(t, f.client, "https://www.youtube.com/watch?v=fresh")
	waiting := testsupport.NewJob(t, f.client, "https://www.youtube.com/watch?v=waiting")

	if err := f.client.Update(ctx, abandoned, map[string]string{
		queue.FieldStatus:    "downloading (12%)",
		queue.FieldHeartbeat: queue.FormatTime(now.Add(-2 * f.cfg.StaleAfter())),
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.client.Update(ctx, fresh, map[string]string{
		queue.FieldStatus:    string(queue.StatusProcessing),
		queue.FieldHeartbeat: queue.FormatTime(now),
	}); err != nil {
		t.Fatal(err)
	}

	reaped, err := f.runner.ReapStale(ctx, f.client)
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected one reaped job, got %d", reaped)
	}
	if job := testsupport.MustGetJob(t, f.client, abandoned); job.Status != queue.StatusError || job.LastError != "stale: worker lost" {
		t.Fatalf("unexpected abandoned record %+v", job)
	}
	if job := testsupport.MustGetJob(t, f.client, fresh); job.Status != queue.StatusProcessing {
		t.Fatalf("fresh job should be untouched, got %q", job.Status)
	}
	if job := testsupport.MustGetJob(t, f.client, waiting); job.Status != queue.StatusQueued {
		t.Fatalf("queued job should be untouched, got %q", job.Status)
	}
	if len(f.callback.records) != 1 || f.callback.records[0]["status"] != "error" {
		t.Fatalf("expected callback for reaped job, got %v", f.callback.records)
	}
}

func TestHeartbeatRefreshedDuringLongAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workers.HeartbeatInterval = 1
	client := testsupport.MustOpenClient(t, cfg)
	id := testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=slow")

	var beats []time.Time
	p := &scriptedPipeline{run: func(ctx context.Context, _ pipeline.Reporter, _ int) (queue.Result, error) {
		deadline := time.After(2500 * time.Millisecond)
		tick := time.NewTicker(200 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-deadline:
				return queue.Result{PublicURL: "x"}, nil
			case <-tick.C:
				if job, err := client.Get(ctx, id); err == nil {
					beats = append(beats, job.Heartbeat)
				}
			}
		}
	}}
	runner := workflow.NewRunner(cfg, p, nil, nil)
	if _, err := runner.Process(context.Background(), client, id); err != nil {
		t.Fatalf("Process: %v", err)
	}
	distinct := map[time.Time]struct{}{}
	for _, b := range beats {
		distinct[b] = struct{}{}
	}
	if len(distinct) < 2 {
		t.Fatalf("expected heartbeat to advance during the attempt, saw %d distinct values", len(distinct))
	}
}

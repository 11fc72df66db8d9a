package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/testsupport"
)

func TestEnqueueWritesRecordBeforePush(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := testsupport.MustOpenClient(t, cfg)
	ctx := context.Background()

	id := testsupport.NewJob(t, client, "https://example.com/watch?v=abc")
	if id == "" {
		t.Fatal("expected generated id")
	}

	popped, err := client.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if popped != id {
		t.Fatalf("popped %q, want %q", popped, id)
	}
	job := testsupport.MustGetJob(t, client, id)
	if job.Status != queue.StatusQueued {
		t.Fatalf("status = %q, want queued", job.Status)
	}
	if job.Filename != id {
		t.Fatalf("filename defaults to id, got %q", job.Filename)
	}
	ids, err := client.JobIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("JobIDs = %v (%v)", ids, err)
	}
}

func TestGetMissingJobIsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := testsupport.MustOpenClient(t, cfg)
	if _, err := client.Get(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := testsupport.MustOpenClient(t, cfg)
	ctx := context.Background()
	id := testsupport.NewJob(t, client, "https://example.com/watch?v=abc")

	if err := client.Update(ctx, id, map[string]string{queue.FieldStatus: string(queue.StatusProcessing)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	job := testsupport.MustGetJob(t, client, id)
	if job.Status != queue.StatusProcessing || job.URL == "" {
		t.Fatalf("unexpected record after update: %+v", job)
	}
	if job.UpdatedAt.Before(job.CreatedAt) {
		t.Fatal("updated_at should be stamped")
	}
}

// flakyStore fails the first SetFields call on the first connection only.
type flakyStore struct {
	queue.Store
	fail *atomic.Int32
}

func (f flakyStore) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if f.fail.Add(-1) >= 0 {
		return errors.New("connection reset by peer")
	}
	return f.Store.SetFields(ctx, key, fields)
}

func TestUpdateRetriesOnceWithFreshConnection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.StoreDialer(cfg)
	var dials atomic.Int32
	failures := &atomic.Int32{}
	dial := func(ctx context.Context) (queue.Store, error) {
		dials.Add(1)
		s, err := base(ctx)
		if err != nil {
			return nil, err
		}
		return flakyStore{Store: s, fail: failures}, nil
	}
	client, err := queue.NewClient(context.Background(), dial, "", logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()
	id := testsupport.NewJob(t, client, "https://example.com/watch?v=abc")

	failures.Store(1)
	if err := client.Update(context.Background(), id, map[string]string{queue.FieldStatus: "processing"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if dials.Load() != 2 {
		t.Fatalf("expected one reconnect, got %d dials", dials.Load())
	}

	failures.Store(2)
	err = client.Update(context.Background(), id, map[string]string{queue.FieldStatus: "done"})
	if !errors.Is(err, services.ErrStore) {
		t.Fatalf("expected ErrStore after second failure, got %v", err)
	}
	if got := testsupport.MustGetJob(t, client, id).Status; got != queue.StatusProcessing {
		t.Fatalf("dropped update should leave status processing, got %q", got)
	}
}

// flakyReader fails GetAllFields while fail is positive.
type flakyReader struct {
	queue.Store
	fail *atomic.Int32
}

func (f flakyReader) GetAllFields(ctx context.Context, key string) (map[string]string, error) {
	if f.fail.Add(-1) >= 0 {
		return nil, errors.New("read tcp: connection reset by peer")
	}
	return f.Store.GetAllFields(ctx, key)
}

func TestGetRetriesOnceWithFreshConnection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.StoreDialer(cfg)
	var dials atomic.Int32
	failures := &atomic.Int32{}
	dial := func(ctx context.Context) (queue.Store, error) {
		dials.Add(1)
		s, err := base(ctx)
		if err != nil {
			return nil, err
		}
		return flakyReader{Store: s, fail: failures}, nil
	}
	client, err := queue.NewClient(context.Background(), dial, "", logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()
	id := testsupport.NewJob(t, client, "https://example.com/watch?v=abc")

	failures.Store(1)
	job, err := client.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("status = %q, want queued", job.Status)
	}
	if dials.Load() != 2 {
		t.Fatalf("expected one reconnect, got %d dials", dials.Load())
	}

	failures.Store(2)
	if _, err := client.Get(context.Background(), id); !errors.Is(err, services.ErrStore) || errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrStore after second failure, got %v", err)
	}
}

func TestNewClientFailsFastWhenUnreachable(t *testing.T) {
	dial := func(context.Context) (queue.Store, error) { return nil, errors.New("dial tcp: connection refused") }
	if _, err := queue.NewClient(context.Background(), dial, "", nil); !errors.Is(err, services.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestSeenSet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := testsupport.MustOpenClient(t, cfg)
	ctx := context.Background()
	key := queue.SeenKey("https://example.com/@chan")

	added, err := client.MarkSeen(ctx, key, "vid1")
	if err != nil || !added {
		t.Fatalf("MarkSeen = %v (%v)", added, err)
	}
	seen, err := client.Seen(ctx, key, "vid1")
	if err != nil || !seen {
		t.Fatalf("Seen = %v (%v)", seen, err)
	}
	added, _ = client.MarkSeen(ctx, key, "vid1")
	if added {
		t.Fatal("second MarkSeen should report existing member")
	}
}

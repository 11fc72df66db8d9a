package testsupport

import (
	"context"
	"testing"
	"time"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/queue/sqlitestore"
)

// StoreDialer returns a dialer for the config's sqlite store with a short
// poll interval suited to tests.
func StoreDialer(cfg *config.Config) queue.Dialer {
	path := cfg.Store.SQLitePath
	return func(context.Context) (queue.Store, error) {
		store, err := sqlitestore.Open(path)
		if err != nil {
			return nil, err
		}
		store.SetPollInterval(5 * time.Millisecond)
		return store, nil
	}
}

// MustOpenClient opens a queue.Client on a temp sqlite store and registers cleanup.
func MustOpenClient(t testing.TB, cfg *config.Config) *queue.Client {
	t.Helper()

	client, err := queue.NewClient(context.Background(), StoreDialer(cfg), cfg.Store.QueueName, logging.NewNop())
	if err != nil {
		t.Fatalf("queue.NewClient: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// NewJob enqueues a video job for url and returns its identifier.
func NewJob(t testing.TB, client *queue.Client, url string, mutate ...func(*queue.Job)) string {
	t.Helper()

	job := &queue.Job{URL: url, Media: queue.MediaVideo}
	for _, fn := range mutate {
		fn(job)
	}
	id, err := client.Enqueue(context.Background(), job)
	if err != nil {
		t.Fatalf("client.Enqueue: %v", err)
	}
	return id
}

// MustGetJob reads a job record or fails the test.
func MustGetJob(t testing.TB, client *queue.Client, id string) *queue.Job {
	t.Helper()

	job, err := client.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("client.Get(%s): %v", id, err)
	}
	return job
}

package sqlitestore_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spool/internal/queue/sqlitestore"
)

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "spool.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.SetPollInterval(5 * time.Millisecond)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestListIsFIFO(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, v := range []string{"a", "b", "c"} {
		if err := store.Push(ctx, "q", v); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if n, err := store.Len(ctx, "q"); err != nil || n != 3 {
		t.Fatalf("Len = %d (%v), want 3", n, err)
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := store.BlockingPop(ctx, "q", 50*time.Millisecond)
		if err != nil {
			t.Fatalf("BlockingPop: %v", err)
		}
		if got != want {
			t.Fatalf("pop = %q, want %q", got, want)
		}
	}
}

func TestBlockingPopTimesOutEmpty(t *testing.T) {
	store := openStore(t)
	start := time.Now()
	got, err := store.BlockingPop(context.Background(), "empty", 30*time.Millisecond)
	if err != nil {
		t.Fatalf("BlockingPop: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty pop, got %q", got)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatal("expected pop to wait for the timeout")
	}
}

func TestBlockingPopWakesOnPush(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.Push(ctx, "q", "late")
	}()
	got, err := store.BlockingPop(ctx, "q", time.Second)
	if err != nil || got != "late" {
		t.Fatalf("BlockingPop = %q (%v), want late", got, err)
	}
}

func TestBlockingPopHonorsCancel(t *testing.T) {
	store := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.BlockingPop(ctx, "q", time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConcurrentPopsDeliverEachValueOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spool.db")
	producer, err := sqlitestore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer producer.Close()
	ctx := context.Background()
	const total = 40
	for i := 0; i < total; i++ {
		if err := producer.Push(ctx, "q", string(rune('A'+i))); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		consumer, err := sqlitestore.Open(path)
		if err != nil {
			t.Fatalf("Open consumer: %v", err)
		}
		consumer.SetPollInterval(5 * time.Millisecond)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer consumer.Close()
			for {
				v, err := consumer.BlockingPop(ctx, "q", 20*time.Millisecond)
				if err != nil {
					t.Errorf("BlockingPop: %v", err)
					return
				}
				if v == "" {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != total {
		t.Fatalf("expected %d distinct values, got %d", total, len(seen))
	}
	for v, n := range seen {
		if n != 1 {
			t.Fatalf("value %q delivered %d times", v, n)
		}
	}
}

func TestHashFieldsMergeWithoutClobbering(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.SetFields(ctx, "job:1", map[string]string{"url": "u", "status": "queued"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	if err := store.SetFields(ctx, "job:1", map[string]string{"status": "processing", "retry_count": "0"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	fields, err := store.GetAllFields(ctx, "job:1")
	if err != nil {
		t.Fatalf("GetAllFields: %v", err)
	}
	if fields["url"] != "u" || fields["status"] != "processing" || fields["retry_count"] != "0" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	missing, err := store.GetAllFields(ctx, "job:absent")
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected empty map for absent key, got %v (%v)", missing, err)
	}
}

func TestSetAddReportsNewMembers(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	added, err := store.SetAdd(ctx, "seen", "a")
	if err != nil || !added {
		t.Fatalf("first SetAdd = %v (%v)", added, err)
	}
	added, err = store.SetAdd(ctx, "seen", "a")
	if err != nil || added {
		t.Fatalf("second SetAdd = %v (%v)", added, err)
	}
	ok, err := store.SetContains(ctx, "seen", "a")
	if err != nil || !ok {
		t.Fatalf("SetContains = %v (%v)", ok, err)
	}
	members, err := store.SetMembers(ctx, "seen")
	if err != nil || len(members) != 1 || members[0] != "a" {
		t.Fatalf("SetMembers = %v (%v)", members, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.db")
	first, err := sqlitestore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.SetFields(context.Background(), "job:x", map[string]string{"status": "done"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	_ = first.Close()

	second, err := sqlitestore.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	fields, err := second.GetAllFields(context.Background(), "job:x")
	if err != nil || fields["status"] != "done" {
		t.Fatalf("expected persisted status, got %v (%v)", fields, err)
	}
}

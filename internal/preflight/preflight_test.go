package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"spool/internal/queue"
	"spool/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if r := CheckStore(context.Background(), testsupport.StoreDialer(cfg)); !r.Passed {
		t.Fatalf("expected reachable store, got %q", r.Detail)
	}
	failing := func(context.Context) (queue.Store, error) { return nil, errors.New("connection refused") }
	if r := CheckStore(context.Background(), failing); r.Passed {
		t.Fatal("expected failure for unreachable store")
	}
	if r := CheckStore(context.Background(), nil); r.Passed {
		t.Fatal("expected failure without dialer")
	}
}

func TestRunAll(t *testing.T) {
	if RunAll(context.Background(), nil, nil) != nil {
		t.Fatal("expected nil results for nil config")
	}

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp", "ffmpeg"))
	cfg.Fetch.JSRuntime = ""
	results := RunAll(context.Background(), cfg, testsupport.StoreDialer(cfg))

	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Download directory", "Data directory", "Job store", "Artifact storage (local)", "yt-dlp", "FFmpeg"} {
		if r, ok := byName[name]; !ok || !r.Passed {
			t.Fatalf("expected %s to pass, got %+v", name, r)
		}
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

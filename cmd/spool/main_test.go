package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spool/internal/api"
	"spool/internal/queue"
	"spool/internal/testsupport"
)

func TestEnqueueThenStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"enqueue", "https://www.youtube.com/watch?v=abc123", "--media", "audio", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var resp api.EnqueueResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode enqueue output %q: %v", out, err)
	}
	if resp.JobID == "" || resp.Status != string(queue.StatusQueued) {
		t.Fatalf("unexpected enqueue response: %+v", resp)
	}

	out, _, err = runCLI(t, []string{"status", resp.JobID, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var record map[string]string
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatalf("decode status output: %v", err)
	}
	if record["status"] != "queued" || record["media"] != "audio" || record["audio_format"] != "mp3" {
		t.Fatalf("unexpected record: %+v", record)
	}

	client := testsupport.MustOpenClient(t, env.cfg)
	job := testsupport.MustGetJob(t, client, resp.JobID)
	if job.URL != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected stored url %q", job.URL)
	}
}

func TestEnqueueRejectsInvalidMedia(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"enqueue", "https://example.com/v", "--media", "hologram"}, env.configPath); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"status", "does-not-exist"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestStatusOverview(t *testing.T) {
	env := setupCLITestEnv(t)
	client := testsupport.MustOpenClient(t, env.cfg)
	testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=one")
	testsupport.NewJob(t, client, "https://www.youtube.com/watch?v=two")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Jobs: 2") || !strings.Contains(out, "queued=2") {
		t.Fatalf("unexpected overview:\n%s", out)
	}
	if !strings.Contains(out, "watch?v=one") {
		t.Fatalf("expected job url in overview:\n%s", out)
	}
}

func TestWatchList(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"watch", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("watch list: %v", err)
	}
	for _, want := range []string{"@example/videos", "0 */15 * * * *", "audio", "yes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("watch list missing %q:\n%s", want, out)
		}
	}
}

func TestWatchRunRejectsBadIndex(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"watch", "run", "7"}, env.configPath); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "spool.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target in output, got %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("MINIO_SECRET_KEY", "hunter2")
	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("secret leaked in output:\n%s", out)
	}
	if !strings.Contains(out, "********") {
		t.Fatalf("expected masked secret:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
}

func TestLogsFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "spool-worker.log")
	content := "t INFO workflow: attempt started job_id=j1\nt INFO workflow: attempt started job_id=j2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err := runCLI(t, []string{"logs", "--role", "worker", "--job", "j2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "job_id=j1") || !strings.Contains(out, "job_id=j2") {
		t.Fatalf("unexpected logs output:\n%s", out)
	}
}

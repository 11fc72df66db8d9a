package toolexec_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"spool/internal/toolexec"
)

func TestExecRunnerStreamsLines(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	out, err := toolexec.ExecRunner{}.Run(context.Background(), toolexec.Command{
		Name: "sh",
		Args: []string{"-c", `printf 'a\rb\nc\n'; echo oops >&2`},
		OnLine: func(stream toolexec.Stream, line string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, string(stream)+":"+line)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	joined := strings.Join(lines, ",")
	for _, want := range []string{"stdout:a", "stdout:b", "stdout:c", "stderr:oops"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
	if !strings.Contains(out.Stderr, "oops") {
		t.Fatalf("expected stderr captured, got %q", out.Stderr)
	}
}

func TestExecRunnerReportsExitDetail(t *testing.T) {
	_, err := toolexec.ExecRunner{}.Run(context.Background(), toolexec.Command{
		Name: "sh",
		Args: []string{"-c", "echo 'ERROR: members-only content' >&2; exit 3"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := toolexec.ExitCode(err); code != 3 {
		t.Fatalf("ExitCode = %d, want 3", code)
	}
	if !strings.Contains(err.Error(), "members-only") {
		t.Fatalf("expected stderr detail in error, got %q", err.Error())
	}
}

func TestExecRunnerKeepsStderrTail(t *testing.T) {
	script := `i=0; while [ $i -lt 120 ]; do echo "WARNING: unable to extract format list, falling back to the web client for request $i" >&2; i=$((i+1)); done; echo "ERROR: final failure" >&2; exit 1`
	out, err := toolexec.ExecRunner{}.Run(context.Background(), toolexec.Command{Name: "sh", Args: []string{"-c", script}})
	var exitErr *toolexec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(exitErr.Detail), "ERROR: final failure") {
		t.Fatalf("expected detail to end with the ERROR line, got tail %q", lastChars(exitErr.Detail, 80))
	}
	if len(out.Stderr) > 8192 {
		t.Fatalf("stderr not bounded: %d bytes", len(out.Stderr))
	}
	if strings.Contains(out.Stderr, "request 0\n") {
		t.Fatal("expected oldest warnings to be dropped")
	}
	if !strings.HasPrefix(out.Stderr, "WARNING:") {
		t.Fatalf("expected retained stderr to start on a line boundary, got %q", out.Stderr[:20])
	}
}

func lastChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func TestExecRunnerCapturesFullStdout(t *testing.T) {
	out, err := toolexec.ExecRunner{}.Run(context.Background(), toolexec.Command{
		Name:          "sh",
		Args:          []string{"-c", "i=0; while [ $i -lt 2000 ]; do echo line-$i; i=$((i+1)); done"},
		CaptureStdout: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.Stdout, "line-1999") {
		t.Fatal("expected full stdout to be captured")
	}
}

func TestExecRunnerKillsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := toolexec.ExecRunner{}.Run(ctx, toolexec.Command{Name: "sleep", Args: []string{"10"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("process was not terminated promptly")
	}
}

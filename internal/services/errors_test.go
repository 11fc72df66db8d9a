package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"spool/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", "exit status 1", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"fetch", "yt-dlp", "exit status 1"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestStageOfReportsFailingStage(t *testing.T) {
	inner := services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", "", errors.New("exit status 1"))
	outer := fmt.Errorf("attempt: %w", inner)
	if got := services.StageOf(outer); got != "fetch" {
		t.Fatalf("StageOf = %q, want fetch", got)
	}
	unstaged := services.Wrap(services.ErrStore, "", "pop", "", inner)
	if got := services.StageOf(unstaged); got != "fetch" {
		t.Fatalf("StageOf should look through unstaged wrappers, got %q", got)
	}
	if got := services.StageOf(errors.New("plain")); got != "" {
		t.Fatalf("StageOf(plain) = %q", got)
	}
	var se *services.StageError
	if !errors.As(outer, &se) || se.Operation != "yt-dlp" {
		t.Fatalf("expected StageError in chain, got %#v", se)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Category
	}{
		{"members only", errors.New("ERROR: [youtube] abc: Join this channel to get access to members-only content like this video"), services.CategorySkip},
		{"private", errors.New("ERROR: Private video. Sign in if you've been granted access"), services.CategorySkip},
		{"marker", services.Wrap(services.ErrUnavailable, "fetch", "", "gone", nil), services.CategorySkip},
		{"generic", errors.New("exit status 1"), services.CategoryRetryable},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), services.CategoryRetryable},
		{"shutdown", fmt.Errorf("fetch: %w", context.Canceled), services.CategoryCanceled},
		{"geo", errors.New("The uploader has not made this video available in your country"), services.CategoryRetryable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestHint(t *testing.T) {
	if hint := services.Hint(errors.New("HTTP Error 429: Too Many Requests")); !strings.Contains(hint, "429") {
		t.Fatalf("unexpected hint %q", hint)
	}
	if hint := services.Hint(context.DeadlineExceeded); !strings.Contains(hint, "job_timeout") {
		t.Fatalf("unexpected hint %q", hint)
	}
	if services.Hint(nil) != "" {
		t.Fatal("expected empty hint for nil error")
	}
}

package services

import (
	"context"
	"errors"
	"strings"
)

// Category is the closed set of outcomes the attempt loop acts on.
type Category string

const (
	// CategoryRetryable failures are retried with backoff until the budget runs out.
	CategoryRetryable Category = "retryable"
	// CategorySkip failures end the job as skipped without further attempts.
	CategorySkip Category = "skip"
	// CategoryCanceled means the worker itself is shutting down.
	CategoryCanceled Category = "canceled"
)

// skipPatterns are lowercase fragments of fetch tool output that identify
// content this account can never retrieve.
var skipPatterns = []string{
	"members-only",
	"members only",
	"join this channel to get access",
	"private video",
	"this video has been removed",
	"this video is no longer available because the youtube account",
	"account associated with this video has been terminated",
}

// Classify maps an attempt failure to a Category. Shutdown cancellation is
// reported as CategoryCanceled; a per-attempt deadline is retryable.
func Classify(err error) Category {
	if err == nil {
		return CategoryRetryable
	}
	if errors.Is(err, ErrUnavailable) {
		return CategorySkip
	}
	if errors.Is(err, context.Canceled) {
		return CategoryCanceled
	}
	if IsSkipMessage(err.Error()) {
		return CategorySkip
	}
	return CategoryRetryable
}

// IsSkipMessage reports whether text matches a known permanent-inaccessibility pattern.
func IsSkipMessage(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range skipPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Hint returns a short operator-facing hint for log lines.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return "attempt exceeded job timeout; raise workers.job_timeout for long media"
	case strings.Contains(lower, "429"), strings.Contains(lower, "too many requests"):
		return "rate limited (429); consider fetch.sleep_requests or cookies"
	case strings.Contains(lower, "403"), strings.Contains(lower, "forbidden"):
		return "access forbidden (403); refresh cookies or update yt-dlp"
	case strings.Contains(lower, "sign in to confirm"):
		return "bot check triggered; provide a cookies file"
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection reset"), strings.Contains(lower, "temporary failure"):
		return "network failure; will retry"
	case errors.Is(err, ErrUnavailable), IsSkipMessage(lower):
		return "content inaccessible to this account"
	case errors.Is(err, ErrStore):
		return "check job store connectivity"
	case errors.Is(err, ErrExternalTool):
		return "inspect tool output in last_error"
	default:
		return "check logs for details"
	}
}

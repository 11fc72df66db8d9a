package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spool/internal/config"
)

const userAgent = "Spool-Go/0.1.0"

// Service defines the callback surface exposed to the attempt loop.
type Service interface {
	// NotifyFinished posts record to callbackURL. An empty URL is a no-op.
	NotifyFinished(ctx context.Context, callbackURL string, record map[string]string) error
}

// NewService builds an HTTP callback service using the configured timeout.
func NewService(cfg *config.Config) Service {
	timeout := cfg.CallbackTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpService{client: &http.Client{Timeout: timeout}}
}

// NewServiceWithClient is NewService with a caller-supplied HTTP client.
func NewServiceWithClient(client *http.Client) Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpService{client: client}
}

type httpService struct {
	client *http.Client
}

func (s *httpService) NotifyFinished(ctx context.Context, callbackURL string, record map[string]string) error {
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" {
		return nil
	}
	parsed, err := url.Parse(callbackURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid callback url %q", callbackURL)
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode callback payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("callback returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Noop discards every callback.
type Noop struct{}

func (Noop) NotifyFinished(context.Context, string, map[string]string) error { return nil }

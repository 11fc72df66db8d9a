package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"spool/internal/toolexec"
)

// Entry is one item from a flat channel or playlist listing.
type Entry struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	LiveStatus string   `json:"live_status"`
	IsLive     bool     `json:"is_live"`
	WasLive    *bool    `json:"was_live"`
}

// Listing streams a flat listing of url, calling fn per entry in the
// listing's native order. Returning false from fn stops the tool early.
// Lines that are not valid JSON are skipped.
func (c *Client) Listing(ctx context.Context, url string, fn func(Entry) bool) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		stopped bool
	)
	args := append(c.commonArgs(), "--flat-playlist", "--dump-json", "--", url)
	_, err := c.runner.Run(runCtx, toolexec.Command{
		Name: c.opts.Binary,
		Args: args,
		OnLine: func(stream toolexec.Stream, line string) {
			if stream != toolexec.StreamStdout {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if stopped {
				return
			}
			entry, ok := parseEntry(line)
			if !ok {
				return
			}
			if !fn(entry) {
				stopped = true
				cancel()
			}
		},
	})
	mu.Lock()
	done := stopped
	mu.Unlock()
	if done && ctx.Err() == nil {
		return nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return wrapRunError("listing", err)
	}
	return nil
}

func parseEntry(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return Entry{}, false
	}
	if entry.ID == "" && entry.URL == "" {
		return Entry{}, false
	}
	return entry, true
}

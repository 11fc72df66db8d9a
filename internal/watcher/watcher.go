// Package watcher scans a channel or playlist listing for new items.
//
// Entries are consumed one at a time in the listing's native order, which is
// newest first for channel uploads. Each entry is normalized to a canonical
// watch URL, filtered (live, short-form, minimum duration), optionally
// deduplicated against the source's seen-set, and optionally enqueued. The
// scan stops once the requested number of qualifying items is collected.
package watcher

import (
	"context"
	"log/slog"
	"strings"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/metrics"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/textutil"
	"spool/internal/ytdlp"
)

const (
	shortFormSeconds = 60
	maxBareIDLen     = 32
	watchURLPrefix   = "https://www.youtube.com/watch?v="
)

// Lister streams listing entries. *ytdlp.Client satisfies it.
type Lister interface {
	Listing(ctx context.Context, url string, fn func(ytdlp.Entry) bool) error
}

// Store is the slice of the job store the watcher needs.
type Store interface {
	Enqueue(ctx context.Context, job *queue.Job) (string, error)
	MarkSeen(ctx context.Context, setKey, member string) (bool, error)
	Seen(ctx context.Context, setKey, member string) (bool, error)
}

// Options controls one scan.
type Options struct {
	Track       bool
	Enqueue     bool
	Limit       int
	Media       queue.Media
	AudioFormat string
	MinDuration int
	SkipShorts  bool
}

// OptionsFromConfig returns the configured filter defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Limit:       cfg.Watcher.DefaultLimit,
		Media:       queue.MediaVideo,
		MinDuration: cfg.Watcher.MinDuration,
		SkipShorts:  cfg.Watcher.SkipShorts,
	}
}

// Item is one qualifying listing entry.
type Item struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	JobID    string   `json:"job_id,omitempty"`
}

// Result summarizes a scan.
type Result struct {
	Items    []Item   `json:"items"`
	Enqueued []string `json:"enqueued"`
}

// Count returns the number of qualifying items.
func (r Result) Count() int { return len(r.Items) }

// Watcher runs listing scans.
type Watcher struct {
	lister Lister
	store  Store
	logger *slog.Logger
}

// New constructs a watcher.
func New(lister Lister, store Store, logger *slog.Logger) *Watcher {
	return &Watcher{lister: lister, store: store, logger: logging.NewComponentLogger(logger, "watcher")}
}

// Check scans sourceURL and returns the qualifying items.
func (w *Watcher) Check(ctx context.Context, sourceURL string, opts Options) (Result, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return Result{}, services.Wrap(services.ErrValidation, "watcher", "check", "source url required", nil)
	}
	opts = opts.normalize()
	seenKey := queue.SeenKey(sourceURL)
	logger := w.logger.With(logging.String("source", sourceURL))

	result := Result{Items: []Item{}, Enqueued: []string{}}
	var scanErr error
	err := w.lister.Listing(ctx, sourceURL, func(entry ytdlp.Entry) bool {
		item, outcome := qualify(entry, opts)
		if outcome == "" && opts.Track {
			outcome, scanErr = w.track(ctx, seenKey, item.ID)
			if scanErr != nil {
				return false
			}
		}
		if outcome != "" {
			metrics.WatcherItemsTotal.WithLabelValues(outcome).Inc()
			logger.Debug("listing entry skipped",
				logging.String("item_id", item.ID),
				logging.String("reason", outcome),
			)
			return true
		}
		if opts.Enqueue {
			id, err := w.enqueue(ctx, item, opts)
			if err != nil {
				scanErr = err
				return false
			}
			item.JobID = id
			result.Enqueued = append(result.Enqueued, id)
		}
		metrics.WatcherItemsTotal.WithLabelValues("accepted").Inc()
		result.Items = append(result.Items, item)
		return len(result.Items) < opts.Limit
	})
	if scanErr != nil {
		return result, scanErr
	}
	if err != nil {
		return result, err
	}
	logger.Info("channel scan complete",
		logging.Int("items", len(result.Items)),
		logging.Int("enqueued", len(result.Enqueued)),
		logging.Bool("track", opts.Track),
	)
	return result, nil
}

// track reports "seen" for items already in the set. New items are added;
// a duplicate entry within the same pass loses the add and is skipped too.
func (w *Watcher) track(ctx context.Context, seenKey, id string) (string, error) {
	seen, err := w.store.Seen(ctx, seenKey, id)
	if err != nil {
		return "", err
	}
	if seen {
		return "seen", nil
	}
	added, err := w.store.MarkSeen(ctx, seenKey, id)
	if err != nil {
		return "", err
	}
	if !added {
		return "seen", nil
	}
	return "", nil
}

func (w *Watcher) enqueue(ctx context.Context, item Item, opts Options) (string, error) {
	job := &queue.Job{
		URL:      item.URL,
		Filename: textutil.SanitizeFileName(item.ID),
		Media:    opts.Media,
	}
	if opts.Media.WantsAudio() {
		job.AudioFormat = opts.AudioFormat
	}
	id, err := w.store.Enqueue(ctx, job)
	if err != nil {
		return "", err
	}
	metrics.JobsEnqueuedTotal.WithLabelValues("watcher").Inc()
	w.logger.Info("job enqueued from listing",
		logging.JobID(id),
		logging.String("url", item.URL),
	)
	return id, nil
}

func (o Options) normalize() Options {
	if o.Limit <= 0 {
		o.Limit = 1
	}
	if m, ok := queue.ParseMedia(string(o.Media)); ok {
		o.Media = m
	} else {
		o.Media = queue.MediaVideo
	}
	if strings.TrimSpace(o.AudioFormat) == "" {
		o.AudioFormat = "mp3"
	}
	return o
}

// qualify applies the filters. A non-empty outcome names the discard reason.
func qualify(entry ytdlp.Entry, opts Options) (Item, string) {
	item := Item{
		ID:       entry.ID,
		Title:    entry.Title,
		Duration: entry.Duration,
	}
	if item.ID == "" {
		item.ID = entry.URL
	}
	item.URL = CanonicalURL(entry)

	if isLive(entry) {
		return item, "live"
	}
	if opts.SkipShorts && isShort(entry) {
		return item, "short"
	}
	if opts.MinDuration > 0 {
		if entry.Duration == nil {
			return item, "unknown_duration"
		}
		if *entry.Duration < float64(opts.MinDuration) {
			return item, "too_short"
		}
	}
	return item, ""
}

// CanonicalURL returns the watch URL for entry. Bare ids map to a
// youtube watch URL; anything else keeps the listing's url.
func CanonicalURL(entry ytdlp.Entry) string {
	id := entry.ID
	if id == "" {
		id = entry.URL
	}
	if id != "" && len(id) <= maxBareIDLen && !strings.HasPrefix(id, "http") {
		return watchURLPrefix + id
	}
	if entry.URL != "" {
		return entry.URL
	}
	return id
}

func isLive(entry ytdlp.Entry) bool {
	switch strings.ToLower(entry.LiveStatus) {
	case "is_live", "is_upcoming", "post_live":
		return true
	}
	return entry.IsLive && (entry.WasLive == nil || !*entry.WasLive)
}

func isShort(entry ytdlp.Entry) bool {
	for _, u := range []string{entry.URL, entry.WebpageURL} {
		if strings.Contains(u, "/shorts/") {
			return true
		}
	}
	return entry.Duration != nil && *entry.Duration < shortFormSeconds
}

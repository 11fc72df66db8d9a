// Package scheduler runs configured channel watches on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/watcher"
)

// Checker runs one channel scan. *watcher.Watcher satisfies it.
type Checker interface {
	Check(ctx context.Context, sourceURL string, opts watcher.Options) (watcher.Result, error)
}

// Entry describes one scheduled watch.
type Entry struct {
	URL  string
	Cron string
	Next time.Time
	Prev time.Time
}

type watch struct {
	cfg  config.Watch
	opts watcher.Options
	id   cron.EntryID
}

// Scheduler owns the cron instance. Overlapping runs of the same watch are
// collapsed into one.
type Scheduler struct {
	cron    *cron.Cron
	checker Checker
	watches []*watch
	logger  *slog.Logger
	group   singleflight.Group
	ctx     context.Context
}

// New registers every [[watch]] entry. An unparseable schedule is an error.
func New(cfg *config.Config, checker Checker, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(config.CronParser)),
		checker: checker,
		logger:  logging.NewComponentLogger(logger, "scheduler"),
		ctx:     context.Background(),
	}
	defaults := watcher.OptionsFromConfig(cfg)
	for i, wc := range cfg.Watches {
		opts := defaults
		opts.Track = wc.Track
		opts.Enqueue = wc.Enqueue
		if wc.Limit > 0 {
			opts.Limit = wc.Limit
		}
		if m, ok := queue.ParseMedia(wc.Media); ok {
			opts.Media = m
		}
		w := &watch{cfg: wc, opts: opts}
		id, err := s.cron.AddFunc(wc.Cron, func() { s.run(s.ctx, w) })
		if err != nil {
			return nil, fmt.Errorf("watch[%d].cron: %w", i, err)
		}
		w.id = id
		s.watches = append(s.watches, w)
	}
	return s, nil
}

// Len returns the number of scheduled watches.
func (s *Scheduler) Len() int { return len(s.watches) }

// Start begins firing schedules until ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.watches) == 0 {
		return
	}
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("watch scheduler started", logging.Int("watches", len(s.watches)))
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedules and waits for running scans.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries reports the schedules with their next fire times.
func (s *Scheduler) Entries() []Entry {
	out := make([]Entry, 0, len(s.watches))
	for _, w := range s.watches {
		e := s.cron.Entry(w.id)
		out = append(out, Entry{URL: w.cfg.URL, Cron: w.cfg.Cron, Next: e.Next, Prev: e.Prev})
	}
	return out
}

// Trigger runs watch i immediately.
func (s *Scheduler) Trigger(ctx context.Context, i int) (watcher.Result, error) {
	if i < 0 || i >= len(s.watches) {
		return watcher.Result{}, fmt.Errorf("watch index %d out of range", i)
	}
	return s.run(ctx, s.watches[i])
}

func (s *Scheduler) run(ctx context.Context, w *watch) (watcher.Result, error) {
	v, err, shared := s.group.Do(w.cfg.URL, func() (any, error) {
		return s.checker.Check(ctx, w.cfg.URL, w.opts)
	})
	res, _ := v.(watcher.Result)
	if shared {
		s.logger.Debug("watch already running; joined", logging.String("source", w.cfg.URL))
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "scheduled channel scan failed", "watch_failed",
			logging.String("source", w.cfg.URL),
			logging.String("cron", w.cfg.Cron),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the listing url and fetch tool output"),
			logging.String(logging.FieldImpact, "new items are picked up on the next run"),
		)
		return res, err
	}
	return res, nil
}

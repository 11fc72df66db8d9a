package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"spool/internal/api"
	"spool/internal/config"
	"spool/internal/logging"
	"spool/internal/scheduler"
	"spool/internal/watcher"
	"spool/internal/ytdlp"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan channels and playlists for new uploads",
	}
	watchCmd.AddCommand(newWatchCheckCommand(ctx))
	watchCmd.AddCommand(newWatchListCommand(ctx))
	watchCmd.AddCommand(newWatchRunCommand(ctx))
	return watchCmd
}

func newWatchCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		req         api.CheckChannelRequest
		track       bool
		enqueue     bool
		minDuration int
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "List qualifying uploads once, optionally tracking and queueing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = args[0]
			req.Track = api.Bool(track)
			req.Enqueue = api.Bool(enqueue)
			if cmd.Flags().Changed("min-duration") {
				req.MinDuration = &minDuration
			}
			return ctx.withQueue(cmd.Context(), func(s *queueSession) error {
				resp, err := s.service.CheckChannel(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				printChannelItems(cmd.OutOrStdout(), resp.Items, resp.Enqueued)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&track, "track", false, "Record returned items so later scans skip them")
	flags.BoolVar(&enqueue, "enqueue", false, "Queue a job for each returned item")
	flags.IntVar(&req.Limit, "limit", 0, "Maximum items to return")
	flags.StringVar(&req.Media, "media", "", "Media for queued jobs: video, audio, or both")
	flags.IntVar(&minDuration, "min-duration", 0, "Minimum duration in seconds (0 disables)")
	flags.BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newWatchListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configured scheduled watches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			printWatches(cmd.OutOrStdout(), cfg.Watches, time.Now())
			return nil
		},
	}
}

func newWatchRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "run <index>",
		Short: "Run a configured watch immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid watch index %q", args[0])
			}
			return ctx.withQueue(cmd.Context(), func(s *queueSession) error {
				scanner := watcher.New(ytdlp.New(ytdlp.OptionsFromConfig(s.cfg), nil), s.client, logging.NewNop())
				sched, err := scheduler.New(s.cfg, scanner, logging.NewNop())
				if err != nil {
					return err
				}
				res, err := sched.Trigger(cmd.Context(), index-1)
				if err != nil {
					return err
				}
				items := make([]api.ChannelItem, 0, len(res.Items))
				for _, item := range res.Items {
					items = append(items, api.ChannelItem(item))
				}
				if jsonOut {
					return writeJSON(cmd, api.CheckChannelResponse{Items: items, Enqueued: res.Enqueued, Count: res.Count()})
				}
				printChannelItems(cmd.OutOrStdout(), items, res.Enqueued)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printChannelItems(out io.Writer, items []api.ChannelItem, enqueued []string) {
	if len(items) == 0 {
		fmt.Fprintln(out, "No qualifying items")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		duration := "?"
		if item.Duration != nil {
			duration = (time.Duration(*item.Duration) * time.Second).String()
		}
		rows = append(rows, []string{item.ID, truncate(item.Title, 48), duration, item.JobID})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Title", "Duration", "Job"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	if len(enqueued) > 0 {
		fmt.Fprintf(out, "Queued %d job(s)\n", len(enqueued))
	}
}

func printWatches(out io.Writer, watches []config.Watch, now time.Time) {
	if len(watches) == 0 {
		fmt.Fprintln(out, "No watches configured")
		return
	}
	rows := make([][]string, 0, len(watches))
	for i, w := range watches {
		next := "invalid schedule"
		if sched, err := config.CronParser.Parse(w.Cron); err == nil {
			next = sched.Next(now).Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			truncate(w.URL, 56),
			w.Cron,
			w.Media,
			strconv.Itoa(w.Limit),
			yesNo(w.Track),
			yesNo(w.Enqueue),
			next,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "URL", "Schedule", "Media", "Limit", "Track", "Enqueue", "Next"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
}

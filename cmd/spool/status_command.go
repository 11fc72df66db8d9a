package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"spool/internal/queue"
)

// recordFieldOrder lists the fields printed first; the rest follow sorted.
var recordFieldOrder = []string{
	"status", "url", "media", "filename", "retry_count", "error", "last_error",
	"public_url", "video_file", "audio_file", "transcript_file", "duration",
	"created_at", "updated_at", "heartbeat",
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var limit int

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show a job record, or the queue overview when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(s *queueSession) error {
				if len(args) == 1 {
					record, err := s.service.Status(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, record)
					}
					printRecord(cmd.OutOrStdout(), args[0], record)
					return nil
				}
				overview, err := loadOverview(cmd.Context(), s.client, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, overview)
				}
				printOverview(cmd.OutOrStdout(), overview)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs listed in the overview")
	return cmd
}

func printRecord(out io.Writer, id string, record map[string]string) {
	fmt.Fprintf(out, "Job %s\n", id)
	rows := make([][]string, 0, len(record))
	seen := make(map[string]bool, len(recordFieldOrder))
	for _, key := range recordFieldOrder {
		seen[key] = true
		if value, ok := record[key]; ok && value != "" {
			rows = append(rows, []string{key, value})
		}
	}
	rest := make([]string, 0, len(record))
	for key := range record {
		if !seen[key] && record[key] != "" {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	for _, key := range rest {
		rows = append(rows, []string{key, record[key]})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
}

type jobSummary struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	Media     string  `json:"media"`
	Retries   int     `json:"retry_count"`
	Progress  float64 `json:"progress,omitempty"`
	URL       string  `json:"url"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

type queueOverview struct {
	Pending int64          `json:"pending"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
	Jobs    []jobSummary   `json:"jobs"`
}

func loadOverview(ctx context.Context, client *queue.Client, limit int) (queueOverview, error) {
	pending, err := client.Pending(ctx)
	if err != nil {
		return queueOverview{}, err
	}
	ids, err := client.JobIDs(ctx)
	if err != nil {
		return queueOverview{}, err
	}
	overview := queueOverview{Pending: pending, Total: len(ids), Counts: map[string]int{}}
	jobs := make([]*queue.Job, 0, len(ids))
	for _, id := range ids {
		job, err := client.Get(ctx, id)
		if err != nil {
			continue
		}
		overview.Counts[string(job.Status.Phase())]++
		jobs = append(jobs, job)
	}
	slices.SortFunc(jobs, func(a, b *queue.Job) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	for _, job := range jobs {
		overview.Jobs = append(overview.Jobs, jobSummary{
			ID:        job.ID,
			Status:    string(job.Status),
			Media:     string(job.Media),
			Retries:   job.RetryCount,
			Progress:  job.Progress,
			URL:       job.URL,
			UpdatedAt: queue.FormatTime(job.UpdatedAt),
		})
	}
	return overview, nil
}

func printOverview(out io.Writer, o queueOverview) {
	phases := make([]string, 0, len(o.Counts))
	for phase := range o.Counts {
		phases = append(phases, phase)
	}
	slices.Sort(phases)
	parts := make([]string, 0, len(phases))
	for _, phase := range phases {
		parts = append(parts, fmt.Sprintf("%s=%d", phase, o.Counts[phase]))
	}
	fmt.Fprintf(out, "Jobs: %d  Pending dispatch: %d\n", o.Total, o.Pending)
	if len(parts) > 0 {
		fmt.Fprintf(out, "By status: %s\n", strings.Join(parts, " "))
	}
	if len(o.Jobs) == 0 {
		fmt.Fprintln(out, "No jobs recorded")
		return
	}
	rows := make([][]string, 0, len(o.Jobs))
	for _, j := range o.Jobs {
		rows = append(rows, []string{j.ID, j.Status, j.Media, fmt.Sprintf("%d", j.Retries), truncate(j.URL, 60), j.UpdatedAt})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Status", "Media", "Retries", "URL", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

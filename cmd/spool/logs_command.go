package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"spool/internal/daemonrun"
	"spool/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		role   string
		lines  int
		follow bool
		jobID  string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the log of a spool process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			switch role {
			case daemonrun.RoleRun, daemonrun.RoleWorker, daemonrun.RoleServe:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			path := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("spool-%s.log", role))
			opts := logs.TailOptions{Limit: lines, JobID: jobID}

			result, err := logs.Tail(path, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, result.Offset, opts, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", daemonrun.RoleRun, "Process role whose log to read (run, worker, serve)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new lines")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines for this job id")
	return cmd
}

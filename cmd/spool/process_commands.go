package main

import (
	"github.com/spf13/cobra"

	"spool/internal/daemonrun"
)

func newProcessCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newProcessCommand(ctx, daemonrun.RoleRun, "Run workers, the HTTP API and scheduled watches in one process"),
		newProcessCommand(ctx, daemonrun.RoleWorker, "Run the worker pool only"),
		newProcessCommand(ctx, daemonrun.RoleServe, "Run the HTTP API only"),
	}
}

func newProcessCommand(ctx *commandContext, role, short string) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   role,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Role:        role,
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

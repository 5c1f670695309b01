package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one hybrid optimization run and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer a.Close()

			return runOnce(ctx, a, cmd)
		},
	}
}

func runOnce(ctx context.Context, a *app, cmd *cobra.Command) error {
	report, err := a.coordinator.RunOnce(ctx)
	if report != nil {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, optimizer.GenerateReport(report.Results))
		fmt.Fprintf(out, "\nMerge policy: %s\nApplied:      %v\n", report.Policy, report.Applied)
		for _, msg := range report.Messages {
			fmt.Fprintf(out, "Error:        %s\n", msg)
		}
	}
	return err
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tsukikage7/elected-scheduler/scheduler"
)

func newCronCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "cron EXPR...",
		Short: "Print the canonical form of cron expressions and whether they match now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parsing --at: %w", err)
				}
				now = t
			}
			return cronRun(cmd, args, now)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate against this RFC3339 time instead of now")
	return cmd
}

func cronRun(cmd *cobra.Command, exprs []string, now time.Time) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "EXPR\tCANONICAL\tMATCHES %s\n", now.Format(time.RFC3339))

	for _, expr := range exprs {
		s, err := scheduler.ParseCron(expr)
		if err != nil {
			_ = w.Flush()
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\n", expr, s, s.Matches(now))
	}
	return w.Flush()
}

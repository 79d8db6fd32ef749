package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamashdown/polywatch/internal/report"
)

func newReportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect exported reports",
	}
	cmd.AddCommand(newReportsListCmd())
	cmd.AddCommand(newReportsShowCmd())
	return cmd
}

func openReportStore(cmd *cobra.Command) (*report.Store, error) {
	cfg, _, err := setup()
	if err != nil {
		return nil, err
	}
	store, err := newReportStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("REPORTS_BACKEND is none")
	}
	return store, nil
}

func newReportsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the report index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReportStore(cmd)
			if err != nil {
				return err
			}
			summaries, err := store.ListReports(cmd.Context())
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No reports exported")
				return nil
			}
			fmt.Fprintf(out, "%-40s %6s  %-10s %6s  %-10s %s\n", "SLUG", "SCORE", "LABEL", "TRADES", "MODE", "UPDATED")
			for _, s := range summaries {
				fmt.Fprintf(out, "%-40s %6.1f  %-10s %6d  %-10s %s\n",
					s.Slug, s.Score, s.Label, s.TradeCount, s.RefreshMode, s.UpdatedAt)
			}
			return nil
		},
	}
}

func newReportsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show SLUG",
		Short: "Print the stored JSON report for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openReportStore(cmd)
			if err != nil {
				return err
			}
			payload, err := store.ReadReport(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read report %s: %w", args[0], err)
			}
			if payload == nil {
				return fmt.Errorf("no report stored for %s", args[0])
			}
			return writeJSONTo(cmd.OutOrStdout(), payload)
		},
	}
}

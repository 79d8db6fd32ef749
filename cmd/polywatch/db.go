package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/liamashdown/polywatch/internal/config"
	"github.com/liamashdown/polywatch/internal/storage"
)

func openDB(cfg *config.Config, log *logrus.Logger) (*storage.DB, error) {
	db, err := storage.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.AutoMigrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run database migrations: %w", err)
	}
	return db, nil
}

func requireDB() (*storage.DB, *logrus.Logger, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.PersistenceEnabled() {
		return nil, nil, fmt.Errorf("DATABASE_DSN is not set")
	}
	db, err := openDB(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, log, err := requireDB()
			if err != nil {
				return err
			}
			defer db.Close()
			log.Info("Database migrations complete")
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		slug  string
		limit int
		runID int64
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored analysis runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := requireDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if runID > 0 {
				return printRunOutcomes(cmd, db, runID)
			}

			runs, err := db.ListRuns(cmd.Context(), slug, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-20s %-40s %6s  %-10s %6s  %s\n", "ID", "CREATED", "SLUG", "SCORE", "LABEL", "TRADES", "MODE")
			for _, r := range runs {
				fmt.Fprintf(out, "%-6d %-20s %-40s %6.1f  %-10s %6d  %s\n",
					r.ID,
					time.Unix(r.CreatedTS, 0).UTC().Format("2006-01-02 15:04:05"),
					r.Slug,
					r.Score,
					r.Label,
					r.TradeCount,
					r.RefreshMode,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&slug, "slug", "", "only list runs for this event slug")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().Int64Var(&runID, "run", 0, "show the per-outcome scores of one run")

	return cmd
}

func printRunOutcomes(cmd *cobra.Command, db *storage.DB, runID int64) error {
	outcomes, err := db.GetRunOutcomes(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("load outcomes for run %d: %w", runID, err)
	}

	out := cmd.OutOrStdout()
	if len(outcomes) == 0 {
		fmt.Fprintf(out, "No outcomes stored for run %d\n", runID)
		return nil
	}
	fmt.Fprintf(out, "%-40s %6s  %-10s %6s\n", "OUTCOME", "SCORE", "VERDICT", "TRADES")
	for _, o := range outcomes {
		fmt.Fprintf(out, "%-40s %6.1f  %-10s %6d\n", o.Label, o.Score, o.Verdict, o.TradeCount)
	}
	return nil
}

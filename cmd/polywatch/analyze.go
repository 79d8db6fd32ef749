package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/liamashdown/polywatch/internal/alerts"
	"github.com/liamashdown/polywatch/internal/config"
	"github.com/liamashdown/polywatch/internal/lock"
	"github.com/liamashdown/polywatch/internal/metrics"
	"github.com/liamashdown/polywatch/internal/processor"
	"github.com/liamashdown/polywatch/internal/report"
	"github.com/liamashdown/polywatch/internal/scoring"
)

type analyzeFlags struct {
	lookback    string
	jsonOut     string
	refreshMode string
	noExport    bool
	noAlert     bool
}

func newAnalyzeCmd() *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Score one or more trade dumps",
		Long:  "Score one or more trade dumps and print a report for each. Exits 2 when any event is labelled suspicious and 3 when a dump could not be analysed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.lookback, "lookback", "", "analysis window such as 15m, 2h or 1d (default: the dump's own window)")
	cmd.Flags().StringVar(&flags.jsonOut, "json-out", "", "write the JSON report to this path (single dump only)")
	cmd.Flags().StringVar(&flags.refreshMode, "refresh-mode", "", "scheduled or on-demand (default: scheduled for SCHEDULED_SLUGS)")
	cmd.Flags().BoolVar(&flags.noExport, "no-export", false, "skip writing reports to the configured backend")
	cmd.Flags().BoolVar(&flags.noAlert, "no-alert", false, "skip alert delivery")

	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, paths []string, flags analyzeFlags) error {
	if flags.jsonOut != "" && len(paths) != 1 {
		return fmt.Errorf("--json-out requires exactly one dump, got %d", len(paths))
	}

	opts := processor.Options{
		RefreshMode: report.RefreshMode(flags.refreshMode),
		NoExport:    flags.noExport,
		NoAlert:     flags.noAlert,
	}
	if opts.RefreshMode != "" && !opts.RefreshMode.Valid() {
		return fmt.Errorf("--refresh-mode must be scheduled or on-demand, got %q", flags.refreshMode)
	}
	if flags.lookback != "" {
		lookback, err := config.ParseLookback(flags.lookback)
		if err != nil {
			return err
		}
		opts.Lookback = lookback
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	profile := scoring.DefaultProfile()
	if cfg.ScoringProfilePath != "" {
		if profile, err = scoring.LoadProfile(cfg.ScoringProfilePath); err != nil {
			return err
		}
	}

	var db processor.RunStore
	if cfg.PersistenceEnabled() {
		conn, err := openDB(cfg, log)
		if err != nil {
			return err
		}
		defer conn.Close()
		db = conn
	}

	var reports processor.ReportStore
	if !flags.noExport {
		store, err := newReportStore(ctx, cfg)
		if err != nil {
			return err
		}
		if store != nil {
			reports = store
		}
	}

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	var sender alerts.Sender
	if multi := alerts.New(cfg, log); multi.Len() > 0 {
		sender = multi
	}

	log.WithFields(logrus.Fields{
		"dumps":       len(paths),
		"profile":     profile.Name,
		"persistence": db != nil,
		"reports":     cfg.ReportsBackend,
		"alert_mode":  cfg.AlertMode,
	}).Info("Starting analysis")

	proc := processor.New(cfg, scoring.NewAggregator(profile), db, reports, locker, sender, log)
	results, err := proc.ProcessFiles(ctx, paths, opts)
	if err != nil {
		return err
	}

	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		switch {
		case res.Err != nil:
			fmt.Fprintf(out, "%s: failed: %v\n", res.Path, res.Err)
		case res.Skipped:
			fmt.Fprintf(out, "%s: skipped, %s is locked by another polywatch process\n", res.Path, res.Slug)
		default:
			fmt.Fprintln(out, report.RenderText(res.Score, res.Lookback))
		}
	}

	if flags.jsonOut != "" && results[0].Score != nil {
		if err := writeJSON(flags.jsonOut, report.Build(results[0].Score, results[0].Lookback)); err != nil {
			return err
		}
	}

	if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		log.WithError(err).Warn("Failed to write metrics textfile")
	}

	if code := processor.ExitCode(results); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func newReportStore(ctx context.Context, cfg *config.Config) (*report.Store, error) {
	var blob report.Blob
	switch cfg.ReportsBackend {
	case config.ReportsFile:
		fileBlob, err := report.NewFileBlob(cfg.ReportsFileRoot)
		if err != nil {
			return nil, err
		}
		blob = fileBlob
	case config.ReportsS3:
		s3Blob, err := report.NewS3Blob(ctx, report.S3Config{
			Endpoint:       cfg.S3Endpoint,
			Region:         cfg.S3Region,
			Bucket:         cfg.S3Bucket,
			Prefix:         cfg.S3Prefix,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			ForcePathStyle: cfg.S3ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		blob = s3Blob
	default:
		return nil, nil
	}
	return report.NewStore(blob, cfg.ReportsIndexKey), nil
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	r, err := lock.NewRedis(ctx, lock.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

func writeJSONTo(w io.Writer, v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeJSON(path string, v any) error {
	if path == "-" {
		return writeJSONTo(os.Stdout, v)
	}
	data, err := encodeJSON(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

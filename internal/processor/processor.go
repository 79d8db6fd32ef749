// Package processor runs batches of dump analyses and fans each result out to
// persistence, report export and alerting.
package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/liamashdown/polywatch/internal/alerts"
	"github.com/liamashdown/polywatch/internal/analyzer"
	"github.com/liamashdown/polywatch/internal/config"
	"github.com/liamashdown/polywatch/internal/ingest"
	"github.com/liamashdown/polywatch/internal/lock"
	"github.com/liamashdown/polywatch/internal/metrics"
	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/report"
	"github.com/liamashdown/polywatch/internal/scoring"
	"github.com/liamashdown/polywatch/internal/storage"
)

// RunStore is the persistence used by the processor
type RunStore interface {
	SaveRun(ctx context.Context, rec *storage.RunRecord) (int64, error)
	GetLastAlertForSlug(ctx context.Context, slug string) (*storage.Alert, error)
	InsertAlert(ctx context.Context, alert *storage.Alert) (int64, error)
}

// ReportStore receives exported reports
type ReportStore interface {
	WriteReport(ctx context.Context, slug string, payload *report.Payload) error
	UpsertSummary(ctx context.Context, summary report.Summary, mode report.RefreshMode) error
}

// Options tune a single batch
type Options struct {
	Lookback    time.Duration      // overrides the dump's own window when positive
	RefreshMode report.RefreshMode // empty picks a mode per slug
	NoExport    bool
	NoAlert     bool
}

// Result is the outcome of one dump
type Result struct {
	Path     string
	Slug     string
	Lookback time.Duration
	Score    *model.AggregateScore
	RunID    int64
	Skipped  bool // slug locked by another process
	Alerted  bool
	Err      error
}

// Processor analyses dumps
type Processor struct {
	cfg         *config.Config
	agg         *scoring.Aggregator
	db          RunStore    // nil disables persistence
	reports     ReportStore // nil disables export
	locker      lock.Locker
	alertSender alerts.Sender // nil disables alerts
	log         *logrus.Logger
	now         func() time.Time

	mu         sync.Mutex
	lastAlerts map[string]int64 // cooldown bookkeeping without a database
}

// New creates a new processor
func New(
	cfg *config.Config,
	agg *scoring.Aggregator,
	db RunStore,
	reports ReportStore,
	locker lock.Locker,
	alertSender alerts.Sender,
	log *logrus.Logger,
) *Processor {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Processor{
		cfg:         cfg,
		agg:         agg,
		db:          db,
		reports:     reports,
		locker:      locker,
		alertSender: alertSender,
		log:         log,
		now:         time.Now,
		lastAlerts:  make(map[string]int64),
	}
}

// ProcessFiles analyses every dump file with at most ANALYSIS_WORKERS running
// at once. Results are returned in input order; per-dump failures are
// reported on the Result and never abort the batch.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string, opts Options) ([]*Result, error) {
	results := make([]*Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.AnalysisWorkers, 1))
	batch := newSlugGate()

	for i, path := range paths {
		g.Go(func() error {
			results[i] = p.processFile(gctx, batch, path, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (p *Processor) processFile(ctx context.Context, batch *slugGate, path string, opts Options) *Result {
	dump, err := ingest.LoadFile(path)
	if err != nil {
		metrics.AnalysesFailed.WithLabelValues("load").Inc()
		p.log.WithError(err).WithField("path", path).Error("Failed to load dump")
		return &Result{Path: path, Slug: slugFromPath(path), Err: err}
	}

	slug := dump.Event.Slug
	if slug == "" {
		slug = slugFromPath(path)
	}

	// Dumps of the same event within a batch run one after another so that
	// only other processes can hold the slug's lock.
	release := batch.hold(slug)
	defer release()

	res := p.ProcessDump(ctx, slug, dump, opts)
	res.Path = path
	return res
}

// slugGate serializes work per slug within one batch
type slugGate struct {
	mu    sync.Mutex
	slugs map[string]*sync.Mutex
}

func newSlugGate() *slugGate {
	return &slugGate{slugs: make(map[string]*sync.Mutex)}
}

func (g *slugGate) hold(slug string) func() {
	g.mu.Lock()
	m, ok := g.slugs[slug]
	if !ok {
		m = &sync.Mutex{}
		g.slugs[slug] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func slugFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ProcessDump runs one analysis under the slug's lock
func (p *Processor) ProcessDump(ctx context.Context, slug string, dump *ingest.Dump, opts Options) *Result {
	res := &Result{Slug: slug, Lookback: dump.Lookback}
	if opts.Lookback > 0 {
		res.Lookback = opts.Lookback
	}
	log := p.log.WithField("slug", slug)

	unlock, err := p.locker.Acquire(ctx, slug, p.cfg.LockTTL)
	if errors.Is(err, lock.ErrHeld) {
		metrics.AnalysesSkipped.Inc()
		log.Warn("Analysis already running in another process, skipping")
		res.Skipped = true
		return res
	}
	if err != nil {
		metrics.AnalysesFailed.WithLabelValues("lock").Inc()
		res.Err = fmt.Errorf("acquire lock %s: %w", slug, err)
		log.WithError(err).Error("Failed to acquire lock")
		return res
	}
	defer unlock()

	if dump.Duplicates > 0 {
		metrics.DuplicateTrades.Add(float64(dump.Duplicates))
		log.WithField("duplicates", dump.Duplicates).Debug("Dropped duplicate trades")
	}
	if len(dump.Skipped) > 0 {
		log.WithField("markets", dump.Skipped).Warn("Skipped markets without a condition id")
	}

	start := time.Now()
	trades := ingest.Window(dump.Trades, res.Lookback)
	res.Score = analyzer.Analyze(dump.Event, trades, p.agg)
	duration := time.Since(start)
	metrics.RecordAnalysis(res.Score, duration)

	log.WithFields(logrus.Fields{
		"trades":   len(trades),
		"score":    res.Score.Score,
		"label":    res.Score.Label,
		"duration": duration,
	}).Info("Analysis complete")

	if p.db != nil {
		res.RunID = p.saveRun(ctx, log, slug, res, opts, duration)
	}

	if p.reports != nil && !opts.NoExport {
		if err := p.export(ctx, slug, res, opts); err != nil {
			log.WithError(err).Error("Failed to export report")
		}
	}

	if p.alertSender != nil && !opts.NoAlert && res.Score.Label.Rank() >= p.cfg.AlertMinLabel.Rank() {
		alerted, err := p.sendAlert(ctx, slug, res)
		if err != nil {
			log.WithError(err).Error("Failed to send alert")
		}
		res.Alerted = alerted
	}

	return res
}

func (p *Processor) saveRun(ctx context.Context, log *logrus.Entry, slug string, res *Result, opts Options, duration time.Duration) int64 {
	rec := storage.NewRunRecord(res.Score, storage.RunMeta{
		Slug:        slug,
		Lookback:    res.Lookback,
		RefreshMode: string(p.refreshMode(slug, opts)),
		ProfileName: p.agg.Profile().Name,
		Duration:    duration,
		CreatedAt:   p.now(),
	})

	start := time.Now()
	id, err := p.db.SaveRun(ctx, rec)
	metrics.RecordDatabaseQuery("save_run", time.Since(start), err)
	if err != nil {
		log.WithError(err).Error("Failed to save run")
		return 0
	}
	return id
}

// refreshMode is the batch's mode, or scheduled for slugs listed in
// SCHEDULED_SLUGS and on-demand for everything else.
func (p *Processor) refreshMode(slug string, opts Options) report.RefreshMode {
	if opts.RefreshMode != "" {
		return opts.RefreshMode
	}
	if slices.Contains(p.cfg.ScheduledSlugs, slug) {
		return report.RefreshScheduled
	}
	return report.RefreshOnDemand
}

func (p *Processor) export(ctx context.Context, slug string, res *Result, opts Options) error {
	mode := p.refreshMode(slug, opts)

	err := p.reports.WriteReport(ctx, slug, report.Build(res.Score, res.Lookback))
	if err == nil {
		err = p.reports.UpsertSummary(ctx, report.NewSummary(res.Score, slug, res.Lookback, p.now()), mode)
	}
	metrics.RecordExport(string(p.cfg.ReportsBackend), err)
	return err
}

// inCooldown reports whether an alert for slug was sent within the cooldown
func (p *Processor) inCooldown(ctx context.Context, slug string, now int64) bool {
	cooldownSec := int64(p.cfg.AlertCooldownMins * 60)
	if cooldownSec <= 0 {
		return false
	}

	var last int64
	if p.db != nil {
		lastAlert, err := p.db.GetLastAlertForSlug(ctx, slug)
		if err != nil {
			p.log.WithError(err).WithField("slug", slug).Warn("Failed to get last alert")
		}
		if lastAlert != nil {
			last = lastAlert.CreatedTS
		}
	} else {
		p.mu.Lock()
		last = p.lastAlerts[slug]
		p.mu.Unlock()
	}
	return last > 0 && now-last < cooldownSec
}

func (p *Processor) sendAlert(ctx context.Context, slug string, res *Result) (bool, error) {
	now := p.now()
	if p.inCooldown(ctx, slug, now.Unix()) {
		p.log.WithField("slug", slug).Info("Alert suppressed (cooldown)")
		metrics.RecordAlert(res.Score.Label, nil, true)
		return false, nil
	}

	payload := alerts.NewPayload(res.Score, slug, res.Lookback, p.cfg.Environment, now)
	err := p.alertSender.Send(ctx, payload)
	metrics.RecordAlert(res.Score.Label, err, false)
	if err != nil {
		return false, err
	}

	if p.db == nil {
		p.mu.Lock()
		p.lastAlerts[slug] = now.Unix()
		p.mu.Unlock()
		return true, nil
	}

	record := &storage.Alert{
		RunID:     res.RunID,
		Slug:      slug,
		Label:     string(res.Score.Label),
		Score:     res.Score.Score,
		Channels:  strings.Join(p.cfg.AlertModes(), ","),
		CreatedTS: now.Unix(),
	}
	start := time.Now()
	_, err = p.db.InsertAlert(ctx, record)
	metrics.RecordDatabaseQuery("insert_alert", time.Since(start), err)
	if err != nil {
		return true, fmt.Errorf("insert alert: %w", err)
	}
	return true, nil
}

// ExitCode is the process status for a batch: the most severe verdict's
// code, or 3 when any dump failed.
func ExitCode(results []*Result) int {
	code := 0
	for _, r := range results {
		if r == nil || r.Err != nil {
			return 3
		}
		if r.Score != nil {
			code = max(code, report.ExitCode(r.Score.Label))
		}
	}
	return code
}

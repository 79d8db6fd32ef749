package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liamashdown/polywatch/internal/model"
)

var (
	// Analysis metrics
	AnalysesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polywatch_analyses_total",
			Help: "Total number of analyses by resulting label",
		},
		[]string{"label"}, // normal, watch, suspicious
	)

	AnalysesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polywatch_analyses_failed_total",
			Help: "Total number of dumps that could not be analysed",
		},
		[]string{"stage"}, // load, lock, analyze
	)

	AnalysesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polywatch_analyses_skipped_total",
			Help: "Total number of analyses skipped because the slug was locked elsewhere",
		},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polywatch_analysis_duration_seconds",
			Help:    "Duration of a single analysis",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	TradesAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polywatch_trades_analyzed_total",
			Help: "Total number of trades fed into analyses",
		},
	)

	DuplicateTrades = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polywatch_duplicate_trades_total",
			Help: "Total number of duplicate trades dropped during ingestion",
		},
	)

	// Scores (0-100) of whole-event analyses
	EventScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polywatch_event_scores",
			Help:    "Distribution of event suspicion scores (0-100 scale)",
			Buckets: []float64{10, 20, 30, 35, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	DetectorTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polywatch_detector_triggers_total",
			Help: "Total number of whole-event detector triggers",
		},
		[]string{"detector"},
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polywatch_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"status", "label"}, // success/error, watch/suspicious
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polywatch_alerts_suppressed_total",
			Help: "Total number of alerts suppressed due to cooldown",
		},
	)

	// Export metrics
	ReportsExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polywatch_reports_exported_total",
			Help: "Total number of report exports",
		},
		[]string{"backend", "status"},
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polywatch_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"}, // save_run/insert_alert, success/error
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polywatch_database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// RecordAnalysis records the outcome of one analysis
func RecordAnalysis(result *model.AggregateScore, duration time.Duration) {
	AnalysesCompleted.WithLabelValues(string(result.Label)).Inc()
	AnalysisDuration.Observe(duration.Seconds())
	TradesAnalyzed.Add(float64(len(result.Trades)))
	EventScores.Observe(result.Score)
	for _, r := range result.Results {
		if r.Triggered {
			DetectorTriggers.WithLabelValues(string(r.Name)).Inc()
		}
	}
}

// RecordAlert records alert metrics
func RecordAlert(label model.Label, err error, suppressed bool) {
	if suppressed {
		AlertsSuppressed.Inc()
		return
	}
	AlertsSent.WithLabelValues(status(err), string(label)).Inc()
}

// RecordExport records a report export attempt
func RecordExport(backend string, err error) {
	ReportsExported.WithLabelValues(backend, status(err)).Inc()
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, duration time.Duration, err error) {
	DatabaseQueries.WithLabelValues(operation, status(err)).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// WriteTextfile dumps the default registry in the node-exporter textfile
// format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polywatch/internal/alerts"
	"github.com/liamashdown/polywatch/internal/config"
	"github.com/liamashdown/polywatch/internal/ingest"
	"github.com/liamashdown/polywatch/internal/lock"
	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/report"
	"github.com/liamashdown/polywatch/internal/scoring"
	"github.com/liamashdown/polywatch/internal/storage"
)

type fakeSender struct {
	mu       sync.Mutex
	payloads []*alerts.AlertPayload
	err      error
}

func (f *fakeSender) Send(ctx context.Context, payload *alerts.AlertPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeStore struct {
	mu        sync.Mutex
	runs      []*storage.RunRecord
	alerts    []*storage.Alert
	lastAlert *storage.Alert
	saveErr   error
}

func (f *fakeStore) SaveRun(ctx context.Context, rec *storage.RunRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.runs = append(f.runs, rec)
	return int64(len(f.runs)), nil
}

func (f *fakeStore) GetLastAlertForSlug(ctx context.Context, slug string) (*storage.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAlert, nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, alert *storage.Alert) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return int64(len(f.alerts)), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "test",
		AnalysisWorkers:   2,
		ReportsBackend:    config.ReportsFile,
		LockTTL:           time.Minute,
		AlertMode:         "log",
		AlertMinLabel:     model.LabelNormal,
		AlertCooldownMins: 60,
		AlertRPS:          1,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestProcessor(t *testing.T, cfg *config.Config, db RunStore, reports ReportStore, sender alerts.Sender) *Processor {
	t.Helper()
	agg := scoring.NewAggregator(scoring.DefaultProfile())
	p := New(cfg, agg, db, reports, lock.NewLocal(), sender, testLogger())
	p.now = func() time.Time { return time.Unix(1700003600, 0) }
	return p
}

func sampleDump(slug string) *ingest.Dump {
	var trades []model.Trade
	for i := 0; i < 6; i++ {
		trades = append(trades, model.Trade{
			Timestamp:    1700000000 + int64(i)*600,
			Wallet:       fmt.Sprintf("0x%d", i%2),
			Side:         model.SideBuy,
			ConditionID:  "0xabc",
			OutcomeIndex: model.Index(i % 2),
			Size:         10,
			Price:        0.5,
		})
	}
	return &ingest.Dump{
		Event: model.EventMetadata{
			ID:    42,
			Title: "Who wins?",
			Slug:  slug,
			Markets: map[string]model.MarketMetadata{
				"0xabc": {ConditionID: "0xabc", Question: "Will A win?", TickSize: 0.01, Outcomes: []string{"Yes", "No"}},
			},
		},
		Trades:   trades,
		Lookback: 3000 * time.Second,
	}
}

const dumpFile = `{
  "event": {
    "id": 7,
    "slug": "%s",
    "title": "Who wins?",
    "markets": [{"conditionId": "0xabc", "question": "Will A win?", "outcomes": ["Yes", "No"]}]
  },
  "trades": [
    {"proxyWallet": "0x1", "side": "BUY", "conditionId": "0xabc", "outcomeIndex": 0, "size": 5, "price": 0.4, "timestamp": 1700000000},
    {"proxyWallet": "0x2", "side": "SELL", "conditionId": "0xabc", "outcomeIndex": 1, "size": 7, "price": 0.6, "timestamp": 1700000300}
  ]
}`

func writeDump(t *testing.T, dir, slug string) string {
	t.Helper()
	path := filepath.Join(dir, slug+".json")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(dumpFile, slug)), 0o644))
	return path
}

func TestProcessFiles(t *testing.T) {
	dir := t.TempDir()
	blob, err := report.NewFileBlob(filepath.Join(dir, "reports"))
	require.NoError(t, err)
	store := report.NewStore(blob, "")
	sender := &fakeSender{}

	paths := []string{
		writeDump(t, dir, "first-event"),
		filepath.Join(dir, "missing.json"),
		writeDump(t, dir, "second-event"),
	}

	p := newTestProcessor(t, testConfig(), nil, store, sender)
	results, err := p.ProcessFiles(context.Background(), paths, Options{RefreshMode: report.RefreshScheduled})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "first-event", results[0].Slug)
	require.NotNil(t, results[0].Score)
	assert.Len(t, results[0].Score.Trades, 2)
	assert.Equal(t, 300*time.Second, results[0].Lookback)
	assert.True(t, results[0].Alerted)

	assert.Equal(t, "missing", results[1].Slug)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Score)

	assert.Equal(t, "second-event", results[2].Slug)
	assert.Equal(t, 2, sender.count())

	reports, err := store.ListReports(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, report.RefreshScheduled, r.RefreshMode)
	}

	payload, err := store.ReadReport(context.Background(), "first-event")
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, int64(300), payload.LookbackSeconds)

	assert.Equal(t, 3, ExitCode(results))
}

func TestProcessFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProcessor(t, testConfig(), nil, nil, nil)
	_, err := p.ProcessFiles(ctx, nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessDumpLookbackOverride(t *testing.T) {
	p := newTestProcessor(t, testConfig(), nil, nil, nil)

	res := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{Lookback: 20 * time.Minute})
	require.NoError(t, res.Err)
	assert.Equal(t, 20*time.Minute, res.Lookback)
	// trades from +1800s onwards are within 1200s of the newest
	assert.Len(t, res.Score.Trades, 3)

	full := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})
	assert.Len(t, full.Score.Trades, 6)
}

func TestProcessDumpLockedSlug(t *testing.T) {
	sender := &fakeSender{}
	p := newTestProcessor(t, testConfig(), nil, nil, sender)

	unlock, err := p.locker.Acquire(context.Background(), "who-wins", time.Minute)
	require.NoError(t, err)
	defer unlock()

	res := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})
	assert.True(t, res.Skipped)
	assert.Nil(t, res.Score)
	assert.NoError(t, res.Err)
	assert.Zero(t, sender.count())
	assert.Equal(t, 0, ExitCode([]*Result{res}))
}

func TestProcessDumpReleasesLock(t *testing.T) {
	p := newTestProcessor(t, testConfig(), nil, nil, nil)
	p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})

	unlock, err := p.locker.Acquire(context.Background(), "who-wins", time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestAlertCooldownInMemory(t *testing.T) {
	sender := &fakeSender{}
	p := newTestProcessor(t, testConfig(), nil, nil, sender)

	first := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})
	second := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})

	assert.True(t, first.Alerted)
	assert.False(t, second.Alerted)
	assert.Equal(t, 1, sender.count())
}

func TestAlertCooldownFromDatabase(t *testing.T) {
	tests := []struct {
		name      string
		lastAlert *storage.Alert
		wantSent  bool
	}{
		{"no previous alert", nil, true},
		{"recent alert", &storage.Alert{CreatedTS: 1700003600 - 600}, false},
		{"expired alert", &storage.Alert{CreatedTS: 1700003600 - 7200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeStore{lastAlert: tt.lastAlert}
			sender := &fakeSender{}
			p := newTestProcessor(t, testConfig(), db, nil, sender)

			res := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{RefreshMode: report.RefreshOnDemand})
			require.NoError(t, res.Err)
			assert.Equal(t, int64(1), res.RunID)
			require.Len(t, db.runs, 1)
			assert.Equal(t, "on-demand", db.runs[0].Run.RefreshMode)
			assert.Equal(t, "default", db.runs[0].Run.ProfileName)

			assert.Equal(t, tt.wantSent, res.Alerted)
			if tt.wantSent {
				require.Len(t, db.alerts, 1)
				assert.Equal(t, int64(1), db.alerts[0].RunID)
				assert.Equal(t, "log", db.alerts[0].Channels)
				assert.Equal(t, int64(1700003600), db.alerts[0].CreatedTS)
			} else {
				assert.Empty(t, db.alerts)
				assert.Zero(t, sender.count())
			}
		})
	}
}

func TestAlertFailureNotRecorded(t *testing.T) {
	db := &fakeStore{}
	sender := &fakeSender{err: errors.New("webhook down")}
	p := newTestProcessor(t, testConfig(), db, nil, sender)

	res := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})
	assert.False(t, res.Alerted)
	assert.Empty(t, db.alerts)
	assert.Equal(t, 1, sender.count())
}

func TestAlertThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.AlertMinLabel = model.LabelSuspicious
	sender := &fakeSender{}
	p := newTestProcessor(t, cfg, nil, nil, sender)

	res := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})
	require.NotNil(t, res.Score)
	require.NotEqual(t, model.LabelSuspicious, res.Score.Label)
	assert.False(t, res.Alerted)
	assert.Zero(t, sender.count())
}

func TestSaveRunFailureContinues(t *testing.T) {
	db := &fakeStore{saveErr: errors.New("connection refused")}
	sender := &fakeSender{}
	p := newTestProcessor(t, testConfig(), db, nil, sender)

	res := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{})
	assert.NoError(t, res.Err)
	assert.Zero(t, res.RunID)
	assert.True(t, res.Alerted)
	require.Len(t, db.alerts, 1)
	assert.Zero(t, db.alerts[0].RunID)
}

func TestSkipExportAndAlert(t *testing.T) {
	blob, err := report.NewFileBlob(t.TempDir())
	require.NoError(t, err)
	store := report.NewStore(blob, "")
	sender := &fakeSender{}
	p := newTestProcessor(t, testConfig(), nil, store, sender)

	res := p.ProcessDump(context.Background(), "who-wins", sampleDump("who-wins"), Options{NoExport: true, NoAlert: true})
	require.NotNil(t, res.Score)

	reports, err := store.ListReports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Zero(t, sender.count())
}

func TestExitCode(t *testing.T) {
	suspicious := &Result{Score: &model.AggregateScore{Label: model.LabelSuspicious}}
	watch := &Result{Score: &model.AggregateScore{Label: model.LabelWatch}}
	failed := &Result{Err: errors.New("bad dump")}

	tests := []struct {
		name    string
		results []*Result
		want    int
	}{
		{"empty batch", nil, 0},
		{"watch only", []*Result{watch}, 0},
		{"suspicious wins", []*Result{watch, suspicious}, 2},
		{"failure wins", []*Result{suspicious, failed}, 3},
		{"skipped", []*Result{{Skipped: true}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.results))
		})
	}
}

func TestRefreshMode(t *testing.T) {
	cfg := testConfig()
	cfg.ScheduledSlugs = []string{"daily-event"}
	p := newTestProcessor(t, cfg, nil, nil, nil)

	assert.Equal(t, report.RefreshScheduled, p.refreshMode("daily-event", Options{}))
	assert.Equal(t, report.RefreshOnDemand, p.refreshMode("who-wins", Options{}))
	assert.Equal(t, report.RefreshOnDemand, p.refreshMode("daily-event", Options{RefreshMode: report.RefreshOnDemand}))
}

func TestProcessFilesSameSlugRunSequentially(t *testing.T) {
	dir := t.TempDir()
	first := writeDump(t, dir, "who-wins")
	second := filepath.Join(dir, "who-wins-rerun.json")
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(second, data, 0o644))

	cfg := testConfig()
	cfg.AnalysisWorkers = 4
	sender := &fakeSender{}
	p := newTestProcessor(t, cfg, nil, nil, sender)

	results, err := p.ProcessFiles(context.Background(), []string{first, second, first}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, "who-wins", res.Slug)
		assert.False(t, res.Skipped, res.Path)
		assert.NoError(t, res.Err)
		assert.NotNil(t, res.Score)
	}
	assert.Equal(t, 1, sender.count())
}

func TestSlugGate(t *testing.T) {
	gate := newSlugGate()
	release := gate.hold("who-wins")

	other := gate.hold("other")
	other()

	acquired := make(chan struct{})
	go func() {
		gate.hold("who-wins")()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held slug")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	<-acquired
}

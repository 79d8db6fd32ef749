package storage

import (
	"strings"
	"time"

	"github.com/liamashdown/polywatch/internal/model"
)

// OutcomeRecord is an outcome row and its detector rows
type OutcomeRecord struct {
	Score   OutcomeScore
	Results []DetectorResult
}

// RunRecord is everything stored for one analysis
type RunRecord struct {
	Run      AnalysisRun
	Results  []DetectorResult
	Outcomes []OutcomeRecord
}

// RunMeta is the caller context stored alongside a result
type RunMeta struct {
	Slug        string
	Lookback    time.Duration
	RefreshMode string
	ProfileName string
	Duration    time.Duration
	CreatedAt   time.Time
}

func detectorRows(results []model.DetectorResult) []DetectorResult {
	rows := make([]DetectorResult, 0, len(results))
	for _, r := range results {
		rows = append(rows, DetectorResult{
			Name:      string(r.Name),
			Triggered: r.Triggered,
			Intensity: r.Intensity,
			Summary:   r.Summary,
		})
	}
	return rows
}

// NewRunRecord flattens a result into storage rows
func NewRunRecord(result *model.AggregateScore, meta RunMeta) *RunRecord {
	rec := &RunRecord{
		Run: AnalysisRun{
			Slug:           meta.Slug,
			EventID:        result.Event.ID,
			Title:          result.Event.Title,
			Score:          result.Score,
			Label:          string(result.Label),
			TradeCount:     len(result.Trades),
			LookbackSec:    int64(meta.Lookback / time.Second),
			RefreshMode:    meta.RefreshMode,
			Rationale:      strings.Join(result.Rationale, "\n"),
			ProfileName:    meta.ProfileName,
			DurationMillis: meta.Duration.Milliseconds(),
			CreatedTS:      meta.CreatedAt.Unix(),
		},
		Results: detectorRows(result.Results),
	}
	if ts, ok := result.LastTradeTimestamp(); ok {
		rec.Run.LastTradeTS = &ts
	}
	for _, o := range result.Outcomes {
		rec.Outcomes = append(rec.Outcomes, OutcomeRecord{
			Score: OutcomeScore{
				ConditionID:  o.Key.ConditionID,
				OutcomeIndex: o.Key.OutcomeIndex.Ptr(),
				Label:        o.Label,
				Score:        o.Score,
				Verdict:      string(o.Verdict),
				TradeCount:   len(o.Trades),
			},
			Results: detectorRows(o.Results),
		})
	}
	return rec
}

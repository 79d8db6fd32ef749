package report

import (
	"time"

	"github.com/liamashdown/polywatch/internal/model"
)

// RefreshMode records how a report was produced
type RefreshMode string

const (
	RefreshScheduled RefreshMode = "scheduled"
	RefreshOnDemand  RefreshMode = "on-demand"
)

// Valid reports whether the mode is one of the known values
func (m RefreshMode) Valid() bool {
	return m == RefreshScheduled || m == RefreshOnDemand
}

// OutcomeSummary is the condensed per-outcome entry of the index
type OutcomeSummary struct {
	Label     string      `json:"label"`
	Score     float64     `json:"score"`
	LabelText model.Label `json:"labelText"`
}

// Summary is one entry of the report index
type Summary struct {
	Slug               string           `json:"slug"`
	EventID            int64            `json:"eventId"`
	Title              string           `json:"title"`
	Label              model.Label      `json:"label"`
	Score              float64          `json:"score"`
	UpdatedAt          string           `json:"updatedAt"`
	LookbackSeconds    int64            `json:"lookbackSeconds"`
	TradeCount         int              `json:"tradeCount"`
	LastTradeTimestamp *int64           `json:"lastTradeTimestamp"`
	TopSignals         []string         `json:"topSignals"`
	Outcomes           []OutcomeSummary `json:"outcomes"`
	RefreshMode        RefreshMode      `json:"refreshMode,omitempty"`
}

// NewSummary builds the index entry for a result
func NewSummary(result *model.AggregateScore, slug string, lookback time.Duration, now time.Time) Summary {
	s := Summary{
		Slug:            slug,
		EventID:         result.Event.ID,
		Title:           result.Event.Title,
		Label:           result.Label,
		Score:           result.Score,
		UpdatedAt:       now.UTC().Format(time.RFC3339),
		LookbackSeconds: int64(lookback / time.Second),
		TradeCount:      len(result.Trades),
		TopSignals:      append([]string{}, result.Rationale...),
		Outcomes:        make([]OutcomeSummary, 0, len(result.Outcomes)),
	}
	if ts, ok := result.LastTradeTimestamp(); ok {
		s.LastTradeTimestamp = &ts
	}
	for _, o := range result.Outcomes {
		s.Outcomes = append(s.Outcomes, OutcomeSummary{Label: o.Label, Score: o.Score, LabelText: o.Verdict})
	}
	return s
}

// ExitCode maps a verdict onto the CLI exit status
func ExitCode(label model.Label) int {
	if label == model.LabelSuspicious {
		return 2
	}
	return 0
}

package alerts

import (
	"context"
	"time"

	"github.com/liamashdown/polywatch/internal/model"
)

// Severity represents alert severity
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityAlert Severity = "ALERT"
)

// SeverityFor maps a verdict onto an alert severity
func SeverityFor(label model.Label) Severity {
	switch label {
	case model.LabelSuspicious:
		return SeverityAlert
	case model.LabelWatch:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// OutcomeLine is one outcome row of an alert
type OutcomeLine struct {
	Label   string
	Score   float64
	Verdict model.Label
	Trades  int
}

// AlertPayload contains all information for an alert
type AlertPayload struct {
	Severity    Severity
	Slug        string
	EventTitle  string
	EventURL    string
	Label       model.Label
	Score       float64
	TradeCount  int
	Lookback    time.Duration
	Rationale   []string
	Outcomes    []OutcomeLine // highest score first, capped at maxOutcomes
	Timestamp   time.Time
	Environment string
}

const maxOutcomes = 5

// NewPayload builds the alert for an analysis result
func NewPayload(result *model.AggregateScore, slug string, lookback time.Duration, environment string, now time.Time) *AlertPayload {
	p := &AlertPayload{
		Severity:    SeverityFor(result.Label),
		Slug:        slug,
		EventTitle:  result.Event.Title,
		EventURL:    "https://polymarket.com/event/" + slug,
		Label:       result.Label,
		Score:       result.Score,
		TradeCount:  len(result.Trades),
		Lookback:    lookback,
		Rationale:   append([]string{}, result.Rationale...),
		Timestamp:   now,
		Environment: environment,
	}
	if p.EventTitle == "" {
		p.EventTitle = slug
	}
	for i, o := range result.Outcomes {
		if i == maxOutcomes {
			break
		}
		p.Outcomes = append(p.Outcomes, OutcomeLine{
			Label:   o.Label,
			Score:   o.Score,
			Verdict: o.Verdict,
			Trades:  len(o.Trades),
		})
	}
	return p
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *AlertPayload) error
}

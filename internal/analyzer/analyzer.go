// Package analyzer orchestrates one analysis: it resolves market metadata,
// runs every detector over the whole sample and over each outcome, and
// assembles the scored result tree.
package analyzer

import (
	"sort"

	"github.com/liamashdown/polywatch/internal/detector"
	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/scoring"
)

const (
	maxTriggeredRationale = 4
	fallbackRationale     = 2
)

// Group is one (condition, outcome) partition of a sample
type Group struct {
	Key    model.GroupKey
	Trades []model.Trade
}

// GroupTrades partitions trades by (condition id, outcome index). Groups are
// returned in first-appearance order and keep the input order within each.
func GroupTrades(trades []model.Trade) []Group {
	index := make(map[model.GroupKey]int)
	var groups []Group
	for _, t := range trades {
		key := keyOf(t)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Trades = append(groups[i].Trades, t)
	}
	return groups
}

// Analyze scores an event's trade sample. The input slice is never
// modified; the result carries copies with empty outcome labels filled in.
func Analyze(event model.EventMetadata, trades []model.Trade, agg *scoring.Aggregator) *model.AggregateScore {
	table := NewMetadataTable(event)

	enriched := make([]model.Trade, len(trades))
	for i, t := range trades {
		if t.Outcome == "" {
			t.Outcome = table.Label(keyOf(t))
		}
		enriched[i] = t
	}

	results := detector.Evaluate(enriched, table)
	score := agg.Score(results)

	out := &model.AggregateScore{
		Event:     event,
		Trades:    enriched,
		Results:   results,
		Score:     score,
		Label:     agg.Label(score),
		Rationale: Rationale(results),
	}

	for _, g := range GroupTrades(enriched) {
		groupResults := detector.Evaluate(g.Trades, table.GroupResolver(g.Key))
		groupScore := agg.Score(groupResults)
		out.Outcomes = append(out.Outcomes, model.GroupScore{
			Key:     g.Key,
			Label:   table.Label(g.Key),
			Trades:  g.Trades,
			Results: groupResults,
			Score:   groupScore,
			Verdict: agg.Label(groupScore),
		})
	}
	sort.SliceStable(out.Outcomes, func(i, j int) bool {
		return out.Outcomes[i].Score > out.Outcomes[j].Score
	})

	return out
}

// Rationale lists up to four triggered summaries, or the two highest
// intensity summaries when nothing triggered.
func Rationale(results []model.DetectorResult) []string {
	var lines []string
	for _, r := range results {
		if r.Triggered && len(lines) < maxTriggeredRationale {
			lines = append(lines, r.Summary)
		}
	}
	if len(lines) > 0 {
		return lines
	}

	ranked := append([]model.DetectorResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Intensity > ranked[j].Intensity })
	for i := 0; i < len(ranked) && i < fallbackRationale; i++ {
		lines = append(lines, ranked[i].Summary)
	}
	return lines
}

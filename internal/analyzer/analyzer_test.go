package analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/scoring"
)

func testEvent() model.EventMetadata {
	return model.EventMetadata{
		ID:    1,
		Title: "Test Event",
		Slug:  "test-event",
		Markets: map[string]model.MarketMetadata{
			"cid": {
				ConditionID:  "cid",
				Question:     "Who wins?",
				MinOrderSize: 5,
				TickSize:     0.01,
				Outcomes:     []string{"Yes", "No"},
				Slug:         "cid-yes",
			},
			"flat": {
				ConditionID: "flat",
				Question:    "Flat tick?",
				Outcomes:    []string{"Up", "Down"},
			},
		},
	}
}

func trade(ts int64, wallet, cid string, idx model.OutcomeIndex) model.Trade {
	return model.Trade{
		Timestamp:    ts,
		Wallet:       wallet,
		Side:         model.SideBuy,
		ConditionID:  cid,
		OutcomeIndex: idx,
		Size:         10,
		Price:        0.5,
	}
}

func TestAnalyzeDoesNotMutateInput(t *testing.T) {
	trades := []model.Trade{trade(1, "wallet", "cid", model.Index(0))}

	res := Analyze(testEvent(), trades, scoring.NewAggregator(scoring.DefaultProfile()))

	assert.Empty(t, trades[0].Outcome)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "Who wins? (Yes)", res.Trades[0].Outcome)
}

func TestAnalyzeKeepsExistingOutcome(t *testing.T) {
	tr := trade(1, "wallet", "cid", model.Index(1))
	tr.Outcome = "No"
	res := Analyze(testEvent(), []model.Trade{tr}, scoring.NewAggregator(scoring.DefaultProfile()))
	assert.Equal(t, "No", res.Trades[0].Outcome)
}

func TestAnalyzeEmptySample(t *testing.T) {
	res := Analyze(testEvent(), nil, scoring.NewAggregator(scoring.DefaultProfile()))

	assert.Empty(t, res.Outcomes)
	require.Len(t, res.Results, len(model.DetectorNames))
	for _, r := range res.Results {
		assert.False(t, r.Triggered)
		assert.Zero(t, r.Intensity)
	}
	assert.Zero(t, res.Score)
	assert.Equal(t, model.LabelNormal, res.Label)
	assert.Len(t, res.Rationale, 2)
}

func TestAnalyzePartitionsSample(t *testing.T) {
	var trades []model.Trade
	for i := 0; i < 30; i++ {
		trades = append(trades, trade(int64(i*10), fmt.Sprintf("w%d", i%5), "cid", model.Index(i%2)))
	}
	trades = append(trades,
		trade(400, "x", "unknown", model.Index(3)),
		trade(410, "y", "unknown", model.NoIndex()),
		trade(420, "z", "cid", model.Index(7)),
	)

	res := Analyze(testEvent(), trades, scoring.NewAggregator(scoring.DefaultProfile()))

	total := 0
	labels := make(map[string]bool)
	for i, g := range res.Outcomes {
		total += len(g.Trades)
		labels[g.Label] = true
		for _, tr := range g.Trades {
			assert.Equal(t, g.Key.ConditionID, tr.ConditionID)
			assert.Equal(t, g.Key.OutcomeIndex, tr.OutcomeIndex)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, res.Outcomes[i-1].Score, g.Score)
		}
	}
	assert.Equal(t, len(trades), total)
	assert.Len(t, res.Outcomes, 5)
	assert.True(t, labels["Who wins? (Yes)"])
	assert.True(t, labels["Who wins? (No)"])
	assert.True(t, labels["unknown#3"])
	assert.True(t, labels["unknown"])
	assert.True(t, labels["Who wins?"])
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	var trades []model.Trade
	for i := 0; i < 40; i++ {
		tr := trade(int64(i*7), fmt.Sprintf("w%d", i%3), "cid", model.Index(i%2))
		if i%2 == 1 {
			tr.Side = model.SideSell
		}
		trades = append(trades, tr)
	}
	agg := scoring.NewAggregator(scoring.DefaultProfile())

	first := Analyze(testEvent(), trades, agg)
	second := Analyze(testEvent(), trades, agg)
	assert.Equal(t, first, second)
}

func TestGroupTradesOrder(t *testing.T) {
	trades := []model.Trade{
		trade(3, "a", "b-market", model.Index(0)),
		trade(1, "b", "a-market", model.Index(0)),
		trade(2, "c", "b-market", model.Index(0)),
	}
	groups := GroupTrades(trades)
	require.Len(t, groups, 2)
	assert.Equal(t, "b-market", groups[0].Key.ConditionID)
	assert.Equal(t, []int64{3, 2}, []int64{groups[0].Trades[0].Timestamp, groups[0].Trades[1].Timestamp})
	assert.Equal(t, "a-market", groups[1].Key.ConditionID)
}

func TestMetadataTable(t *testing.T) {
	table := NewMetadataTable(testEvent())

	tests := []struct {
		name    string
		key     model.GroupKey
		label   string
		minSize float64
		tick    float64
	}{
		{"known outcome", model.GroupKey{ConditionID: "cid", OutcomeIndex: model.Index(1)}, "Who wins? (No)", 5, 0.01},
		{"out of range index", model.GroupKey{ConditionID: "cid", OutcomeIndex: model.Index(9)}, "Who wins?", 5, 0.01},
		{"absent index", model.GroupKey{ConditionID: "cid"}, "Who wins?", 5, 0.01},
		{"unknown market with index", model.GroupKey{ConditionID: "nope", OutcomeIndex: model.Index(2)}, "nope#2", 0, 0.01},
		{"unknown market without index", model.GroupKey{ConditionID: "nope"}, "nope", 0, 0.01},
		{"zero tick", model.GroupKey{ConditionID: "flat", OutcomeIndex: model.Index(0)}, "Flat tick? (Up)", 0, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.label, table.Label(tt.key))
			c := table.GroupResolver(tt.key)
			assert.Equal(t, tt.minSize, c.MinSize)
			assert.Equal(t, tt.tick, c.Tick)
		})
	}

	flat := trade(1, "w", "flat", model.Index(0))
	assert.Zero(t, table.TickSize(flat))
	assert.Equal(t, 0.01, table.TickSize(trade(1, "w", "nope", model.NoIndex())))
	assert.Equal(t, 5.0, table.MinOrderSize(trade(1, "w", "cid", model.Index(4))))
}

func TestRationale(t *testing.T) {
	triggered := []model.DetectorResult{
		{Name: model.WalletConcentration, Triggered: true, Summary: "a"},
		{Name: model.MinSizeSpam, Triggered: true, Summary: "b"},
		{Name: model.TimingRegular, Triggered: false, Summary: "c"},
		{Name: model.PingPong, Triggered: true, Summary: "d"},
		{Name: model.RoundTrips, Triggered: true, Summary: "e"},
		{Name: model.PriceWhips, Triggered: true, Summary: "f"},
	}
	assert.Equal(t, []string{"a", "b", "d", "e"}, Rationale(triggered))

	quiet := []model.DetectorResult{
		{Name: model.WalletConcentration, Intensity: 0.2, Summary: "a"},
		{Name: model.MinSizeSpam, Intensity: 0.9, Summary: "b"},
		{Name: model.TimingRegular, Intensity: 0.5, Summary: "c"},
		{Name: model.PingPong, Intensity: 0.5, Summary: "d"},
	}
	assert.Equal(t, []string{"b", "c"}, Rationale(quiet))
}

// Package report turns an analysis result into its exported JSON document,
// its index summary and its human-readable rendering.
package report

import (
	"sort"
	"time"

	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/stats"
)

// EventRef identifies the analysed event
type EventRef struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
	ID    int64  `json:"id"`
}

// OutcomeEntry is the scored view of one outcome
type OutcomeEntry struct {
	Label        string                 `json:"label"`
	ConditionID  string                 `json:"conditionId"`
	OutcomeIndex model.OutcomeIndex     `json:"outcomeIndex"`
	Score        float64                `json:"score"`
	LabelText    model.Label            `json:"labelText"`
	Heuristics   []model.DetectorResult `json:"heuristics"`
}

// Payload is the exported report document
type Payload struct {
	Event           EventRef               `json:"event"`
	Score           float64                `json:"score"`
	Label           model.Label            `json:"label"`
	Heuristics      []model.DetectorResult `json:"heuristics"`
	Outcomes        []OutcomeEntry         `json:"outcomes"`
	LookbackSeconds int64                  `json:"lookbackSeconds"`
	Analytics       *Analytics             `json:"analytics,omitempty"`
}

// Analytics carries descriptive statistics alongside the score
type Analytics struct {
	MarketOverview MarketOverview     `json:"marketOverview"`
	Outcomes       []OutcomeAnalytics `json:"outcomes"`
	Timeseries     Timeseries         `json:"timeseries"`
}

// WalletCoverage counts how many trades carry a wallet
type WalletCoverage struct {
	UniqueWallets  int     `json:"uniqueWallets"`
	MissingWallets int     `json:"missingWallets"`
	MissingShare   float64 `json:"missingShare"`
}

// TopWallets are the shares held by the largest wallets
type TopWallets struct {
	TradesTop1   float64 `json:"tradesTop1"`
	TradesTop3   float64 `json:"tradesTop3"`
	NotionalTop1 float64 `json:"notionalTop1"`
	NotionalTop3 float64 `json:"notionalTop3"`
}

// TradeRef points at a notable trade
type TradeRef struct {
	Notional  *float64 `json:"notional,omitempty"`
	Size      float64  `json:"size"`
	Price     float64  `json:"price"`
	Wallet    string   `json:"wallet"`
	Timestamp int64    `json:"timestamp"`
}

// MarketOverview summarizes the whole sample
type MarketOverview struct {
	TotalTrades       int            `json:"totalTrades"`
	TotalSize         float64        `json:"totalSize"`
	TotalNotional     float64        `json:"totalNotional"`
	AverageSize       float64        `json:"averageSize"`
	AverageNotional   float64        `json:"averageNotional"`
	WalletCoverage    WalletCoverage `json:"walletCoverage"`
	TopWallets        TopWallets     `json:"topWallets"`
	LargestBySize     *TradeRef      `json:"largestBySize,omitempty"`
	LargestByNotional *TradeRef      `json:"largestByNotional,omitempty"`
}

// OutcomeAnalytics summarizes one outcome's trades
type OutcomeAnalytics struct {
	Label        string                 `json:"label"`
	ConditionID  string                 `json:"conditionId"`
	OutcomeIndex model.OutcomeIndex     `json:"outcomeIndex"`
	TradeCount   int                    `json:"tradeCount"`
	Notional     float64                `json:"notional"`
	VolumeShare  float64                `json:"volumeShare"`
	VWAP         float64                `json:"vwap"`
	LastPrice    *float64               `json:"lastPrice"`
	Score        float64                `json:"score"`
	LabelText    model.Label            `json:"labelText"`
	Heuristics   []model.DetectorResult `json:"heuristics"`
}

// MinutePoint is one bar of the per-minute series
type MinutePoint struct {
	Timestamp  int64    `json:"timestamp"`
	ISO        string   `json:"iso"`
	TradeCount int      `json:"tradeCount"`
	VWAP       *float64 `json:"vwap"`
}

// Timeseries holds the per-minute bars of the sample
type Timeseries struct {
	PerMinute []MinutePoint `json:"perMinute"`
}

// Build assembles the exported document for a result
func Build(result *model.AggregateScore, lookback time.Duration) *Payload {
	p := &Payload{
		Event: EventRef{
			Title: result.Event.Title,
			Slug:  result.Event.Slug,
			ID:    result.Event.ID,
		},
		Score:           result.Score,
		Label:           result.Label,
		Heuristics:      result.Results,
		Outcomes:        make([]OutcomeEntry, 0, len(result.Outcomes)),
		LookbackSeconds: int64(lookback / time.Second),
	}
	for _, o := range result.Outcomes {
		p.Outcomes = append(p.Outcomes, OutcomeEntry{
			Label:        o.Label,
			ConditionID:  o.Key.ConditionID,
			OutcomeIndex: o.Key.OutcomeIndex,
			Score:        o.Score,
			LabelText:    o.Verdict,
			Heuristics:   o.Results,
		})
	}
	p.Analytics = &Analytics{
		MarketOverview: overview(result.Trades),
		Outcomes:       outcomeAnalytics(result),
		Timeseries:     timeseries(result.Trades),
	}
	return p
}

func topShare(values []float64, total float64, k int) float64 {
	if total <= 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if k > len(sorted) {
		k = len(sorted)
	}
	sum := 0.0
	for _, v := range sorted[:k] {
		sum += v
	}
	return sum / total
}

func overview(trades []model.Trade) MarketOverview {
	o := MarketOverview{TotalTrades: len(trades)}

	counts := make(map[string]float64)
	notionals := make(map[string]float64)
	var largestSize, largestNotional *model.Trade
	for i := range trades {
		t := &trades[i]
		o.TotalSize += t.Size
		o.TotalNotional += t.Notional()
		if largestSize == nil || t.Size > largestSize.Size {
			largestSize = t
		}
		if largestNotional == nil || t.Notional() > largestNotional.Notional() {
			largestNotional = t
		}
		if t.Wallet == "" {
			o.WalletCoverage.MissingWallets++
			continue
		}
		counts[t.Wallet]++
		notionals[t.Wallet] += t.Notional()
	}

	if o.TotalTrades > 0 {
		o.AverageSize = o.TotalSize / float64(o.TotalTrades)
		o.AverageNotional = o.TotalNotional / float64(o.TotalTrades)
		o.WalletCoverage.MissingShare = float64(o.WalletCoverage.MissingWallets) / float64(o.TotalTrades)
	}
	o.WalletCoverage.UniqueWallets = len(counts)

	countValues := make([]float64, 0, len(counts))
	notionalValues := make([]float64, 0, len(notionals))
	var countTotal, notionalTotal float64
	for w, c := range counts {
		countValues = append(countValues, c)
		notionalValues = append(notionalValues, notionals[w])
		countTotal += c
		notionalTotal += notionals[w]
	}
	o.TopWallets = TopWallets{
		TradesTop1:   topShare(countValues, countTotal, 1),
		TradesTop3:   topShare(countValues, countTotal, 3),
		NotionalTop1: topShare(notionalValues, notionalTotal, 1),
		NotionalTop3: topShare(notionalValues, notionalTotal, 3),
	}

	if largestSize != nil {
		o.LargestBySize = &TradeRef{
			Size:      largestSize.Size,
			Price:     largestSize.Price,
			Wallet:    largestSize.Wallet,
			Timestamp: largestSize.Timestamp,
		}
	}
	if largestNotional != nil {
		notional := largestNotional.Notional()
		o.LargestByNotional = &TradeRef{
			Notional:  &notional,
			Size:      largestNotional.Size,
			Price:     largestNotional.Price,
			Wallet:    largestNotional.Wallet,
			Timestamp: largestNotional.Timestamp,
		}
	}
	return o
}

func outcomeAnalytics(result *model.AggregateScore) []OutcomeAnalytics {
	total := 0.0
	for _, t := range result.Trades {
		total += t.Notional()
	}

	out := make([]OutcomeAnalytics, 0, len(result.Outcomes))
	for _, g := range result.Outcomes {
		a := OutcomeAnalytics{
			Label:        g.Label,
			ConditionID:  g.Key.ConditionID,
			OutcomeIndex: g.Key.OutcomeIndex,
			TradeCount:   len(g.Trades),
			Score:        g.Score,
			LabelText:    g.Verdict,
			Heuristics:   g.Results,
		}
		var size, pxSize float64
		for _, t := range g.Trades {
			a.Notional += t.Notional()
			size += t.Size
			pxSize += t.Price * t.Size
		}
		if size > 0 {
			a.VWAP = pxSize / size
		}
		if total > 0 {
			a.VolumeShare = a.Notional / total
		}
		if n := len(g.Trades); n > 0 {
			last := g.Trades[n-1].Price
			a.LastPrice = &last
		}
		out = append(out, a)
	}
	return out
}

func timeseries(trades []model.Trade) Timeseries {
	minutes, counts := stats.MinuteCounts(trades)
	vwap := stats.VWAPByMinute(trades)
	points := make([]MinutePoint, 0, len(minutes))
	for i, m := range minutes {
		ts := m * 60
		p := MinutePoint{
			Timestamp:  ts,
			ISO:        time.Unix(ts, 0).UTC().Format(time.RFC3339),
			TradeCount: counts[i],
		}
		if v, ok := vwap[m]; ok {
			p.VWAP = &v
		}
		points = append(points, p)
	}
	return Timeseries{PerMinute: points}
}

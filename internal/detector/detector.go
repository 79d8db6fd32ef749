// Package detector implements the fixed set of heuristic signals evaluated
// over a trade sample. Every detector is a pure function: it never mutates
// its input and returns an untriggered result with zero intensity when the
// sample is too small to judge.
package detector

import (
	"fmt"
	"sort"

	"github.com/liamashdown/polywatch/internal/model"
)

// MetadataResolver supplies per-trade market constraints
type MetadataResolver interface {
	MinOrderSize(trade model.Trade) float64
	TickSize(trade model.Trade) float64
}

// Constant resolves every trade to the same constraints. It is used when a
// sample is known to belong to a single outcome.
type Constant struct {
	MinSize float64
	Tick    float64
}

// MinOrderSize implements MetadataResolver
func (c Constant) MinOrderSize(model.Trade) float64 { return c.MinSize }

// TickSize implements MetadataResolver
func (c Constant) TickSize(model.Trade) float64 { return c.Tick }

// Evaluate runs all detectors in their fixed order
func Evaluate(trades []model.Trade, resolver MetadataResolver) []model.DetectorResult {
	results := make([]model.DetectorResult, 0, len(model.DetectorNames))
	for _, name := range model.DetectorNames {
		results = append(results, Run(name, trades, resolver))
	}
	return results
}

// Run dispatches a single detector by name
func Run(name model.DetectorName, trades []model.Trade, resolver MetadataResolver) model.DetectorResult {
	switch name {
	case model.WalletConcentration:
		return WalletConcentration(trades)
	case model.MinSizeSpam:
		return MinSizeSpam(trades, resolver)
	case model.TimingRegular:
		return TimingRegularity(trades)
	case model.PingPong:
		return PingPong(trades)
	case model.RoundTrips:
		return RoundTrips(trades, resolver)
	case model.PriceWhips:
		return PriceWhips(trades)
	default:
		panic(fmt.Sprintf("detector: unknown name %q", name))
	}
}

func quiet(name model.DetectorName, summary string) model.DetectorResult {
	return model.DetectorResult{Name: name, Summary: summary}
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// byWallet groups trades per wallet, each sequence sorted by timestamp.
// The returned key order is deterministic.
func byWallet(trades []model.Trade) ([]string, map[string][]model.Trade) {
	groups := make(map[string][]model.Trade)
	var wallets []string
	for _, t := range trades {
		if _, ok := groups[t.Wallet]; !ok {
			wallets = append(wallets, t.Wallet)
		}
		groups[t.Wallet] = append(groups[t.Wallet], t)
	}
	for _, seq := range groups {
		sort.SliceStable(seq, func(i, j int) bool { return seq[i].Timestamp < seq[j].Timestamp })
	}
	return wallets, groups
}

// markedShare is the share of all trades that belong to the marked wallets
func markedShare(total int, marked []string, groups map[string][]model.Trade) float64 {
	n := 0
	for _, w := range marked {
		n += len(groups[w])
	}
	return float64(n) / float64(total)
}

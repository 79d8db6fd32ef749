package detector

import (
	"fmt"
	"math"

	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/stats"
)

const (
	concentrationTop1Count    = 0.60
	concentrationTop1Notional = 0.40
	concentrationTop3Count    = 0.85
)

// WalletConcentration flags samples dominated by one or a few wallets
func WalletConcentration(trades []model.Trade) model.DetectorResult {
	total := len(trades)
	if total == 0 {
		return quiet(model.WalletConcentration, "insufficient trades")
	}

	counts := make(map[string]int)
	notionals := make(map[string]float64)
	var wallets []string
	for _, t := range trades {
		if _, ok := counts[t.Wallet]; !ok {
			wallets = append(wallets, t.Wallet)
		}
		counts[t.Wallet]++
		notionals[t.Wallet] += t.Notional()
	}

	maxCount := 0
	maxNotional := 0.0
	sumNotional := 0.0
	values := make([]int, 0, len(wallets))
	for _, w := range wallets {
		if counts[w] > maxCount {
			maxCount = counts[w]
		}
		if notionals[w] > maxNotional {
			maxNotional = notionals[w]
		}
		sumNotional += notionals[w]
		values = append(values, counts[w])
	}

	top1Count := float64(maxCount) / float64(total)
	top1Notional := maxNotional / math.Max(1e-9, sumNotional)
	top3Count := float64(stats.SumTop(values, 3)) / float64(total)

	triggered := (top1Count >= concentrationTop1Count && top1Notional >= concentrationTop1Notional) ||
		top3Count >= concentrationTop3Count

	return model.DetectorResult{
		Name:      model.WalletConcentration,
		Triggered: triggered,
		Intensity: math.Min(1, math.Max(top1Count, top3Count)),
		Summary: fmt.Sprintf("wallet concentration top1=%s trades (%s notional), top3=%s",
			formatPct(top1Count), formatPct(top1Notional), formatPct(top3Count)),
	}
}

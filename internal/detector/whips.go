package detector

import (
	"fmt"
	"math"
	"sort"

	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/stats"
)

const (
	whipMinTrades      = 20
	whipMoveWindow     = 1
	whipMinMove        = 0.05
	whipRevertWindow   = 5
	whipRevertFraction = 0.2
	whipEpisodeTrades  = 10
	whipTop3Share      = 0.70
	whipTrigger        = 2
	whipSaturation     = 3.0
)

// PriceWhips counts episodes where a sharp VWAP move reverts within a few
// minutes while a handful of wallets account for most of the trades.
func PriceWhips(trades []model.Trade) model.DetectorResult {
	if len(trades) < whipMinTrades {
		return quiet(model.PriceWhips, "small sample")
	}

	vwap := stats.VWAPByMinute(trades)
	if len(vwap) == 0 {
		return quiet(model.PriceWhips, "no minute bars")
	}
	minutes := make([]int64, 0, len(vwap))
	for m := range vwap {
		minutes = append(minutes, m)
	}
	sort.Slice(minutes, func(i, j int) bool { return minutes[i] < minutes[j] })

	perMinute := make(map[int64][]model.Trade)
	for _, t := range trades {
		perMinute[t.Minute()] = append(perMinute[t.Minute()], t)
	}

	episodes := 0
	for idx := 0; idx < len(minutes); {
		start := minutes[idx]
		startPx := vwap[start]

		move := -1
		for j := idx + 1; j < len(minutes) && minutes[j]-start <= whipMoveWindow; j++ {
			if math.Abs(vwap[minutes[j]]-startPx) >= whipMinMove {
				move = j
				break
			}
		}
		if move < 0 {
			idx++
			continue
		}

		moveSize := math.Abs(vwap[minutes[move]] - startPx)
		limit := minutes[move] + whipRevertWindow
		next := idx + 1
		for k := move + 1; k < len(minutes) && minutes[k] <= limit; k++ {
			if math.Abs(vwap[minutes[k]]-startPx) > whipRevertFraction*moveSize {
				continue
			}
			var window []model.Trade
			for m := start; m <= minutes[k]; m++ {
				window = append(window, perMinute[m]...)
			}
			if len(window) >= whipEpisodeTrades && stats.TopKShare(window, 3) >= whipTop3Share {
				episodes++
				next = k + 1
				break
			}
		}
		idx = next
	}

	return model.DetectorResult{
		Name:      model.PriceWhips,
		Triggered: episodes >= whipTrigger,
		Intensity: math.Min(1, float64(episodes)/whipSaturation),
		Summary:   fmt.Sprintf("price whips detected=%d", episodes),
	}
}

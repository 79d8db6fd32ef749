package detector

import (
	"fmt"
	"math"

	"github.com/liamashdown/polywatch/internal/model"
)

const (
	spamSizeMultiple = 1.5
	spamMinTrades    = 100
	spamShare        = 0.75
)

// MinSizeSpam flags samples made mostly of trades at the market minimum
func MinSizeSpam(trades []model.Trade, resolver MetadataResolver) model.DetectorResult {
	if len(trades) == 0 {
		return quiet(model.MinSizeSpam, "no trades")
	}

	evaluated, nearMin := 0, 0
	for _, t := range trades {
		minSize := resolver.MinOrderSize(t)
		if minSize <= 0 {
			continue
		}
		evaluated++
		if t.Size <= spamSizeMultiple*minSize {
			nearMin++
		}
	}
	if evaluated == 0 {
		return quiet(model.MinSizeSpam, "no min-size metadata")
	}

	share := float64(nearMin) / float64(evaluated)
	return model.DetectorResult{
		Name:      model.MinSizeSpam,
		Triggered: len(trades) >= spamMinTrades && share > spamShare,
		Intensity: math.Min(1, share),
		Summary:   fmt.Sprintf("min-size trades share=%s over %d trades", formatPct(share), len(trades)),
	}
}

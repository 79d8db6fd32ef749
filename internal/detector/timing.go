package detector

import (
	"fmt"
	"sort"

	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/stats"
)

const (
	timingMinTrades = 15
	timingMinGaps   = 10
	timingMaxCV     = 0.35
	timingMinZ      = 3.0
	madToSigma      = 1.4826
)

// TimingRegularity flags metronomic inter-arrival times combined with a
// spike in the latest minute's trade count.
func TimingRegularity(trades []model.Trade) model.DetectorResult {
	if len(trades) < timingMinTrades {
		return quiet(model.TimingRegular, "not enough trades")
	}

	timestamps := make([]int64, len(trades))
	for i, t := range trades {
		timestamps[i] = t.Timestamp
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	var gaps []float64
	for i := 1; i < len(timestamps); i++ {
		if gap := timestamps[i] - timestamps[i-1]; gap > 0 {
			gaps = append(gaps, float64(gap))
		}
	}
	if len(gaps) < timingMinGaps {
		return quiet(model.TimingRegular, "insufficient gaps")
	}
	cv := stats.CoefficientOfVariation(gaps)

	_, counts := stats.MinuteCounts(trades)
	perMinute := make([]float64, len(counts))
	for i, c := range counts {
		perMinute[i] = float64(c)
	}
	current := perMinute[len(perMinute)-1]
	med := stats.Median(perMinute)
	sigma := 1.0
	if mad := stats.MAD(perMinute, med); mad > 0 {
		sigma = madToSigma * mad
	}
	z := (current - med) / sigma

	cvComponent := stats.Clamp((timingMaxCV-cv)/timingMaxCV, 0, 1)
	zComponent := stats.Clamp((z-timingMinZ)/timingMinZ, 0, 1)
	intensity := cvComponent
	if zComponent > intensity {
		intensity = zComponent
	}

	return model.DetectorResult{
		Name:      model.TimingRegular,
		Triggered: cv < timingMaxCV && z >= timingMinZ,
		Intensity: intensity,
		Summary:   fmt.Sprintf("timing CV=%.2f, z-score=%.1f", cv, z),
	}
}

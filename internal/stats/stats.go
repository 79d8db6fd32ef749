// Package stats provides the per-minute and per-wallet aggregates the
// detectors share.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/liamashdown/polywatch/internal/model"
)

// MinuteCounts buckets trades by minute and returns the minutes in ascending
// order alongside their trade counts.
func MinuteCounts(trades []model.Trade) ([]int64, []int) {
	if len(trades) == 0 {
		return nil, nil
	}
	counts := make(map[int64]int)
	for _, t := range trades {
		counts[t.Minute()]++
	}
	minutes := make([]int64, 0, len(counts))
	for m := range counts {
		minutes = append(minutes, m)
	}
	sort.Slice(minutes, func(i, j int) bool { return minutes[i] < minutes[j] })

	values := make([]int, len(minutes))
	for i, m := range minutes {
		values[i] = counts[m]
	}
	return minutes, values
}

// VWAPByMinute returns the size-weighted average price of each minute.
// Minutes with zero total size are omitted.
func VWAPByMinute(trades []model.Trade) map[int64]float64 {
	type bucket struct {
		pxSize float64
		size   float64
	}
	buckets := make(map[int64]*bucket)
	for _, t := range trades {
		m := t.Minute()
		b, ok := buckets[m]
		if !ok {
			b = &bucket{}
			buckets[m] = b
		}
		b.pxSize += t.Price * t.Size
		b.size += t.Size
	}

	vwap := make(map[int64]float64, len(buckets))
	for m, b := range buckets {
		if b.size == 0 {
			continue
		}
		vwap[m] = b.pxSize / b.size
	}
	return vwap
}

// WalletCounts returns the number of trades per wallet. Trades without a
// wallet share the empty key.
func WalletCounts(trades []model.Trade) map[string]int {
	counts := make(map[string]int)
	for _, t := range trades {
		counts[t.Wallet]++
	}
	return counts
}

// TopKShare is the sum of the k largest per-wallet trade counts divided by
// the total trade count. It panics on negative k.
func TopKShare(trades []model.Trade, k int) float64 {
	if k < 0 {
		panic(fmt.Sprintf("stats: negative k %d", k))
	}
	if len(trades) == 0 {
		return 0
	}
	counts := WalletCounts(trades)
	values := make([]int, 0, len(counts))
	for _, c := range counts {
		values = append(values, c)
	}
	return float64(SumTop(values, k)) / float64(len(trades))
}

// SumTop adds the k largest values
func SumTop(values []int, k int) int {
	sorted := append([]int(nil), values...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	if k > len(sorted) {
		k = len(sorted)
	}
	total := 0
	for _, v := range sorted[:k] {
		total += v
	}
	return total
}

// Median of the values; 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD is the median absolute deviation around med
func MAD(values []float64, med float64) float64 {
	if len(values) == 0 {
		return 0
	}
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	return Median(deviations)
}

// CoefficientOfVariation is the population standard deviation over the mean.
// It is 0 for empty input or a zero mean.
func CoefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance) / mean
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

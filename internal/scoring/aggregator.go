package scoring

import (
	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/stats"
)

// Aggregator scores detector results against an immutable profile
type Aggregator struct {
	profile Profile
}

// NewAggregator creates an aggregator for the given profile
func NewAggregator(profile Profile) *Aggregator {
	return &Aggregator{profile: profile}
}

// Profile returns a copy of the aggregator's profile
func (a *Aggregator) Profile() Profile {
	return a.profile
}

func (a *Aggregator) component(r model.DetectorResult) float64 {
	base := 0.0
	if r.Triggered {
		base = 1.0
	}
	return a.profile.TriggeredShare*base + a.profile.IntensityShare*stats.Clamp(r.Intensity, 0, 1)
}

// Score combines results into a value in [0, 100]. Results are summed in
// the order given so equal inputs always produce identical floats.
func (a *Aggregator) Score(results []model.DetectorResult) float64 {
	total := 0.0
	for _, r := range results {
		total += a.profile.Weights.Of(r.Name) * a.component(r)
	}
	return stats.Clamp(total*100.0, 0, 100)
}

// Label maps a score to its verdict
func (a *Aggregator) Label(score float64) model.Label {
	switch {
	case score >= a.profile.Thresholds.Suspicious:
		return model.LabelSuspicious
	case score >= a.profile.Thresholds.Watch:
		return model.LabelWatch
	default:
		return model.LabelNormal
	}
}

// Package scoring combines detector results into a bounded suspicion score
// and a categorical label.
package scoring

import (
	"fmt"
	"math"

	"github.com/BurntSushi/toml"

	"github.com/liamashdown/polywatch/internal/model"
)

// Weights holds the per-detector weight of the score
type Weights struct {
	WalletConcentration float64 `toml:"wallet_concentration"`
	MinSizeSpam         float64 `toml:"min_size_spam"`
	TimingRegular       float64 `toml:"timing_regular"`
	PingPong            float64 `toml:"ping_pong"`
	RoundTrips          float64 `toml:"round_trips"`
	PriceWhips          float64 `toml:"price_whips"`
}

// Of returns the weight for a detector; unknown names weigh 0
func (w Weights) Of(name model.DetectorName) float64 {
	switch name {
	case model.WalletConcentration:
		return w.WalletConcentration
	case model.MinSizeSpam:
		return w.MinSizeSpam
	case model.TimingRegular:
		return w.TimingRegular
	case model.PingPong:
		return w.PingPong
	case model.RoundTrips:
		return w.RoundTrips
	case model.PriceWhips:
		return w.PriceWhips
	default:
		return 0
	}
}

func (w Weights) sum() float64 {
	return w.WalletConcentration + w.MinSizeSpam + w.TimingRegular + w.PingPong + w.RoundTrips + w.PriceWhips
}

// Thresholds are the minimum scores for the watch and suspicious labels
type Thresholds struct {
	Watch      float64 `toml:"watch"`
	Suspicious float64 `toml:"suspicious"`
}

// Profile is the full set of scoring parameters
type Profile struct {
	Name           string     `toml:"name"`
	Weights        Weights    `toml:"weights"`
	TriggeredShare float64    `toml:"triggered_share"`
	IntensityShare float64    `toml:"intensity_share"`
	Thresholds     Thresholds `toml:"thresholds"`
}

// DefaultProfile returns the stock weights and thresholds
func DefaultProfile() Profile {
	return Profile{
		Name: "default",
		Weights: Weights{
			WalletConcentration: 0.25,
			MinSizeSpam:         0.20,
			TimingRegular:       0.20,
			PingPong:            0.15,
			RoundTrips:          0.10,
			PriceWhips:          0.10,
		},
		TriggeredShare: 0.7,
		IntensityShare: 0.3,
		Thresholds: Thresholds{
			Watch:      35,
			Suspicious: 60,
		},
	}
}

// LoadProfile reads a TOML profile. Keys missing from the file keep their
// default values.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to decode scoring profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid scoring profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the profile is internally consistent
func (p Profile) Validate() error {
	for _, name := range model.DetectorNames {
		if w := p.Weights.Of(name); w < 0 {
			return fmt.Errorf("weight for %s must be non-negative, got %.4f", name, w)
		}
	}
	if s := p.Weights.sum(); math.Abs(s-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %.6f", s)
	}
	if p.TriggeredShare < 0 || p.IntensityShare < 0 {
		return fmt.Errorf("component shares must be non-negative")
	}
	if math.Abs(p.TriggeredShare+p.IntensityShare-1) > 1e-9 {
		return fmt.Errorf("triggered_share + intensity_share must equal 1, got %.6f", p.TriggeredShare+p.IntensityShare)
	}
	if p.Thresholds.Watch <= 0 || p.Thresholds.Watch >= p.Thresholds.Suspicious || p.Thresholds.Suspicious > 100 {
		return fmt.Errorf("thresholds must satisfy 0 < watch < suspicious <= 100, got watch=%.2f suspicious=%.2f",
			p.Thresholds.Watch, p.Thresholds.Suspicious)
	}
	return nil
}

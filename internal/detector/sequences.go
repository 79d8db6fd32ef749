package detector

import (
	"fmt"
	"math"

	"github.com/liamashdown/polywatch/internal/model"
)

const (
	sequenceMinTrades = 10

	pingPongWindowSec   = 60
	pingPongSizeRatio   = 0.20
	pingPongWalletShare = 0.20
	pingPongTrigger     = 0.40

	roundTripWindowSec   = 600
	roundTripMinTick     = 0.01
	roundTripWalletShare = 0.33
	roundTripTrigger     = 0.30
)

// PingPong flags wallets that alternate sides quickly at similar sizes
func PingPong(trades []model.Trade) model.DetectorResult {
	if len(trades) < sequenceMinTrades {
		return quiet(model.PingPong, "small sample")
	}

	wallets, groups := byWallet(trades)
	var marked []string
	for _, w := range wallets {
		seq := groups[w]
		flagged := make(map[int]struct{})
		for i := 1; i < len(seq); i++ {
			prev, cur := seq[i-1], seq[i]
			ratio := math.Abs(cur.Size-prev.Size) / math.Max(math.Max(prev.Size, cur.Size), 1e-9)
			if cur.Side != prev.Side && cur.Timestamp-prev.Timestamp <= pingPongWindowSec && ratio <= pingPongSizeRatio {
				flagged[i] = struct{}{}
				flagged[i-1] = struct{}{}
			}
		}
		if float64(len(flagged))/float64(len(seq)) >= pingPongWalletShare {
			marked = append(marked, w)
		}
	}
	if len(marked) == 0 {
		return quiet(model.PingPong, "no alternating sequences")
	}

	share := markedShare(len(trades), marked, groups)
	return model.DetectorResult{
		Name:      model.PingPong,
		Triggered: share >= pingPongTrigger,
		Intensity: math.Min(1, share),
		Summary:   fmt.Sprintf("ping-pong wallets share=%s of trades", formatPct(share)),
	}
}

// RoundTrips flags wallets that reverse a position within a tick shortly
// after opening it.
func RoundTrips(trades []model.Trade, resolver MetadataResolver) model.DetectorResult {
	if len(trades) < sequenceMinTrades {
		return quiet(model.RoundTrips, "small sample")
	}

	wallets, groups := byWallet(trades)
	var marked []string
	for _, w := range wallets {
		seq := groups[w]
		reversals := 0
		for i := 1; i < len(seq); i++ {
			prev, cur := seq[i-1], seq[i]
			if cur.Side == prev.Side || cur.Timestamp-prev.Timestamp > roundTripWindowSec {
				continue
			}
			tick := math.Max(math.Max(resolver.TickSize(cur), resolver.TickSize(prev)), roundTripMinTick)
			if math.Abs(cur.Price-prev.Price) <= tick {
				reversals++
			}
		}
		if float64(reversals)/float64(len(seq)) >= roundTripWalletShare {
			marked = append(marked, w)
		}
	}
	if len(marked) == 0 {
		return quiet(model.RoundTrips, "no rapid reversals")
	}

	share := markedShare(len(trades), marked, groups)
	return model.DetectorResult{
		Name:      model.RoundTrips,
		Triggered: share >= roundTripTrigger,
		Intensity: math.Min(1, share),
		Summary:   fmt.Sprintf("round-trip wallets share=%s of trades", formatPct(share)),
	}
}

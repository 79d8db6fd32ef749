// Package ingest loads trade dumps and normalizes them into analysis input
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liamashdown/polywatch/internal/model"
	"github.com/liamashdown/polywatch/internal/polymarket/dataapi"
	"github.com/liamashdown/polywatch/internal/polymarket/gammaapi"
)

// rawDump is the on-disk dump document
type rawDump struct {
	Slug            string          `json:"slug"`
	Event           *gammaapi.Event `json:"event"`
	Trades          []dataapi.Trade `json:"trades"`
	LookbackSeconds *int64          `json:"lookbackSeconds"`
}

// Dump is a normalized analysis input
type Dump struct {
	Event      model.EventMetadata
	Trades     []model.Trade
	Lookback   time.Duration
	Duplicates int
	Skipped    []string // markets dropped for lacking a condition id
}

// LoadFile reads and normalizes a dump file
func LoadFile(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	dump, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", path, err)
	}
	return dump, nil
}

// Decode reads and normalizes a dump document
func Decode(r io.Reader) (*Dump, error) {
	var raw rawDump
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode dump: %w", err)
	}
	if raw.Event == nil {
		return nil, fmt.Errorf("dump has no event")
	}

	event, skipped, err := raw.Event.Metadata(raw.Slug)
	if err != nil {
		return nil, err
	}

	trades, dupes := NormalizeTrades(raw.Trades)

	var lookback time.Duration
	switch {
	case raw.LookbackSeconds != nil:
		lookback = time.Duration(*raw.LookbackSeconds) * time.Second
	case len(trades) > 0:
		lookback = time.Duration(trades[len(trades)-1].Timestamp-trades[0].Timestamp) * time.Second
	}

	return &Dump{
		Event:      event,
		Trades:     trades,
		Lookback:   lookback,
		Duplicates: dupes,
		Skipped:    skipped,
	}, nil
}

// NormalizeTrades converts raw trades, drops duplicates and sorts the
// result by timestamp. It returns the number of duplicates dropped.
func NormalizeTrades(raw []dataapi.Trade) ([]model.Trade, int) {
	seen := make(map[dataapi.DedupKey]struct{}, len(raw))
	trades := make([]model.Trade, 0, len(raw))
	dupes := 0
	for _, r := range raw {
		key := r.Key()
		if _, ok := seen[key]; ok {
			dupes++
			continue
		}
		seen[key] = struct{}{}

		side := model.Side(strings.ToUpper(strings.TrimSpace(r.Side)))
		if side == "" {
			side = model.SideBuy
		}
		trades = append(trades, model.Trade{
			Timestamp:    r.Timestamp,
			Wallet:       CanonicalWallet(r.ProxyWallet),
			Side:         side,
			ConditionID:  r.ConditionID,
			OutcomeIndex: r.Index(),
			Outcome:      r.Outcome,
			Size:         r.Size,
			Price:        model.NormalizePrice(r.Price),
			TxHash:       r.TransactionHash,
		})
	}
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Timestamp < trades[j].Timestamp })
	return trades, dupes
}

// CanonicalWallet lower-cases a wallet. Hex addresses are normalized to
// their full 20-byte form; blank wallets become empty.
func CanonicalWallet(wallet string) string {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return ""
	}
	if common.IsHexAddress(wallet) {
		return strings.ToLower(common.HexToAddress(wallet).Hex())
	}
	return strings.ToLower(wallet)
}

// Window keeps the trades within lookback of the newest trade. A zero
// lookback keeps everything.
func Window(trades []model.Trade, lookback time.Duration) []model.Trade {
	if lookback <= 0 || len(trades) == 0 {
		return trades
	}
	newest := trades[0].Timestamp
	for _, t := range trades {
		if t.Timestamp > newest {
			newest = t.Timestamp
		}
	}
	cutoff := newest - int64(lookback/time.Second)
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Timestamp >= cutoff {
			out = append(out, t)
		}
	}
	return out
}

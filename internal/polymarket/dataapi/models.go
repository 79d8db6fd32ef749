// Package dataapi holds the Polymarket Data API trade shape as it appears in
// exported dumps.
package dataapi

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/liamashdown/polywatch/internal/model"
)

// Trade represents a trade from the Data API
type Trade struct {
	ProxyWallet     string          `json:"proxyWallet"`
	Side            string          `json:"side"` // BUY, SELL
	ConditionID     string          `json:"conditionId"`
	OutcomeIndex    json.RawMessage `json:"outcomeIndex"`
	Outcome         string          `json:"outcome"`
	Size            float64         `json:"size"`
	Price           float64         `json:"price"`
	Timestamp       int64           `json:"timestamp"` // Unix timestamp in seconds
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	EventSlug       string          `json:"eventSlug"`
	TransactionHash string          `json:"transactionHash"`
}

// Index parses the outcome index leniently. Integers, integral floats and
// numeric strings are accepted; anything else is treated as absent.
func (t Trade) Index() model.OutcomeIndex {
	raw := strings.TrimSpace(string(t.OutcomeIndex))
	if raw == "" || raw == "null" {
		return model.NoIndex()
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return model.Index(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return model.Index(int(f))
	}
	return model.NoIndex()
}

// DedupKey identifies a trade across overlapping dump pages
type DedupKey struct {
	TransactionHash string
	ConditionID     string
	OutcomeIndex    string
	Size            float64
	Price           float64
	Timestamp       int64
}

// Key returns the trade's de-duplication key
func (t Trade) Key() DedupKey {
	return DedupKey{
		TransactionHash: t.TransactionHash,
		ConditionID:     t.ConditionID,
		OutcomeIndex:    string(t.OutcomeIndex),
		Size:            t.Size,
		Price:           t.Price,
		Timestamp:       t.Timestamp,
	}
}

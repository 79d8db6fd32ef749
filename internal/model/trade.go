// Package model holds the value types shared by the analysis engine and the
// layers around it.
package model

import (
	"encoding/json"
	"strconv"
)

// Side is the direction of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OutcomeIndex is an optional position in a market's outcome list.
// The zero value means the index is absent.
type OutcomeIndex struct {
	Value int
	Valid bool
}

// Index returns a present outcome index
func Index(i int) OutcomeIndex {
	return OutcomeIndex{Value: i, Valid: true}
}

// NoIndex returns an absent outcome index
func NoIndex() OutcomeIndex {
	return OutcomeIndex{}
}

// String renders the index, or an empty string when absent
func (o OutcomeIndex) String() string {
	if !o.Valid {
		return ""
	}
	return strconv.Itoa(o.Value)
}

// Ptr returns a pointer copy for storage layers that model NULL as nil
func (o OutcomeIndex) Ptr() *int {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// MarshalJSON encodes an absent index as null
func (o OutcomeIndex) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Value)), nil
}

// UnmarshalJSON accepts null or an integer
func (o *OutcomeIndex) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OutcomeIndex{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Index(v)
	return nil
}

// Trade is one normalized execution. Callers treat it as immutable.
type Trade struct {
	Timestamp    int64        `json:"timestamp"`
	Wallet       string       `json:"proxyWallet,omitempty"` // lower-cased; empty when unknown
	Side         Side         `json:"side"`
	ConditionID  string       `json:"conditionId"`
	OutcomeIndex OutcomeIndex `json:"outcomeIndex"`
	Outcome      string       `json:"outcome,omitempty"`
	Size         float64      `json:"size"`
	Price        float64      `json:"price"`
	TxHash       string       `json:"transactionHash,omitempty"`
}

// Notional is size times price
func (t Trade) Notional() float64 {
	return t.Size * t.Price
}

// Minute is the trade's minute bucket
func (t Trade) Minute() int64 {
	return floorDiv(t.Timestamp, 60)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// NormalizePrice maps a raw price onto a [0,1] probability. Values above 1
// and up to 100 are percentages; anything larger saturates at 1.
func NormalizePrice(value float64) float64 {
	if value > 1.0 {
		if value <= 100.0 {
			value = value / 100.0
		} else {
			value = 1.0
		}
	}
	if value < 0.0 {
		value = 0.0
	}
	if value > 1.0 {
		value = 1.0
	}
	return value
}

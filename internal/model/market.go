package model

// MarketMetadata describes one market (condition) of an event
type MarketMetadata struct {
	ConditionID  string   `json:"conditionId"`
	Question     string   `json:"question"`
	MinOrderSize float64  `json:"orderMinSize"`
	TickSize     float64  `json:"orderPriceMinTickSize"`
	Outcomes     []string `json:"outcomes"`
	Slug         string   `json:"slug,omitempty"`
}

// OutcomeName resolves an outcome index against the outcome list.
// Absent and out-of-range indices resolve to no name.
func (m MarketMetadata) OutcomeName(idx OutcomeIndex) (string, bool) {
	if !idx.Valid {
		return "", false
	}
	if idx.Value >= 0 && idx.Value < len(m.Outcomes) {
		return m.Outcomes[idx.Value], true
	}
	return "", false
}

// EventMetadata groups the markets of one event
type EventMetadata struct {
	ID      int64                     `json:"id"`
	Title   string                    `json:"title"`
	Slug    string                    `json:"slug"`
	Markets map[string]MarketMetadata `json:"markets"`
}

// OutcomeMetadata is the resolved view of one (market, outcome) pair
type OutcomeMetadata struct {
	ConditionID    string
	OutcomeIndex   OutcomeIndex
	Outcome        string // empty when the index does not resolve
	MarketQuestion string
	MinOrderSize   float64
	TickSize       float64
}

// OutcomeMeta resolves metadata for a (condition, index) pair, falling back
// to a 0 minimum size and 0.01 tick when the market is unknown.
func (e EventMetadata) OutcomeMeta(conditionID string, idx OutcomeIndex) OutcomeMetadata {
	meta := OutcomeMetadata{
		ConditionID:    conditionID,
		OutcomeIndex:   idx,
		MarketQuestion: conditionID,
		TickSize:       0.01,
	}
	market, ok := e.Markets[conditionID]
	if !ok {
		return meta
	}
	meta.Outcome, _ = market.OutcomeName(idx)
	meta.MinOrderSize = market.MinOrderSize
	meta.TickSize = market.TickSize
	meta.MarketQuestion = market.Question
	return meta
}

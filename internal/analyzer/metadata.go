package analyzer

import (
	"fmt"

	"github.com/liamashdown/polywatch/internal/detector"
	"github.com/liamashdown/polywatch/internal/model"
)

const defaultTickSize = 0.01

// MetadataTable resolves trades against an event's markets. Entries exist
// for every (condition, outcome index) pair plus a condition-only fallback.
type MetadataTable struct {
	entries map[model.GroupKey]model.OutcomeMetadata
}

var _ detector.MetadataResolver = (*MetadataTable)(nil)

// NewMetadataTable builds the lookup table for an event
func NewMetadataTable(event model.EventMetadata) *MetadataTable {
	entries := make(map[model.GroupKey]model.OutcomeMetadata)
	for cid, market := range event.Markets {
		for i := range market.Outcomes {
			idx := model.Index(i)
			entries[model.GroupKey{ConditionID: cid, OutcomeIndex: idx}] = event.OutcomeMeta(cid, idx)
		}
		entries[model.GroupKey{ConditionID: cid}] = event.OutcomeMeta(cid, model.NoIndex())
	}
	return &MetadataTable{entries: entries}
}

// Lookup resolves a key, falling back to the condition-only entry
func (m *MetadataTable) Lookup(key model.GroupKey) (model.OutcomeMetadata, bool) {
	if meta, ok := m.entries[key]; ok {
		return meta, true
	}
	meta, ok := m.entries[model.GroupKey{ConditionID: key.ConditionID}]
	return meta, ok
}

func keyOf(t model.Trade) model.GroupKey {
	return model.GroupKey{ConditionID: t.ConditionID, OutcomeIndex: t.OutcomeIndex}
}

// MinOrderSize implements detector.MetadataResolver
func (m *MetadataTable) MinOrderSize(t model.Trade) float64 {
	if meta, ok := m.Lookup(keyOf(t)); ok {
		return meta.MinOrderSize
	}
	return 0
}

// TickSize implements detector.MetadataResolver
func (m *MetadataTable) TickSize(t model.Trade) float64 {
	if meta, ok := m.Lookup(keyOf(t)); ok {
		return meta.TickSize
	}
	return defaultTickSize
}

// Label returns the human display label for a (condition, outcome) pair
func (m *MetadataTable) Label(key model.GroupKey) string {
	if meta, ok := m.Lookup(key); ok {
		if meta.Outcome != "" {
			return fmt.Sprintf("%s (%s)", meta.MarketQuestion, meta.Outcome)
		}
		return meta.MarketQuestion
	}
	if !key.OutcomeIndex.Valid {
		return key.ConditionID
	}
	return fmt.Sprintf("%s#%d", key.ConditionID, key.OutcomeIndex.Value)
}

// GroupResolver returns the constant resolver used when scoring one group
func (m *MetadataTable) GroupResolver(key model.GroupKey) detector.Constant {
	c := detector.Constant{Tick: defaultTickSize}
	if meta, ok := m.Lookup(key); ok {
		c.MinSize = meta.MinOrderSize
		if meta.TickSize != 0 {
			c.Tick = meta.TickSize
		}
	}
	return c
}

// Package gammaapi holds the Polymarket Gamma event shape as it appears in
// exported dumps, and its conversion into analysis metadata.
package gammaapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/liamashdown/polywatch/internal/model"
)

// ErrNoMarkets is returned for events without any usable market
var ErrNoMarkets = errors.New("event has no markets to inspect")

const defaultTickSize = 0.01

// Outcomes decodes either a JSON array or a JSON-encoded string holding one
type Outcomes []string

// UnmarshalJSON implements json.Unmarshaler
func (o *Outcomes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}

	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		if encoded == "" {
			*o = nil
			return nil
		}
		var items []any
		if err := json.Unmarshal([]byte(encoded), &items); err != nil {
			// Not a JSON list; keep the raw string as the only outcome.
			*o = Outcomes{encoded}
			return nil
		}
		*o = stringify(items)
		return nil
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("outcomes: %w", err)
	}
	*o = stringify(items)
	return nil
}

func stringify(items []any) Outcomes {
	out := make(Outcomes, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

// ID accepts Gamma identifiers encoded as numbers or numeric strings
type ID int64

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", raw, err)
	}
	*id = ID(v)
	return nil
}

// Market represents a Gamma API market
type Market struct {
	ID                    ID       `json:"id"`
	ConditionID           string   `json:"conditionId"`
	Slug                  string   `json:"slug"`
	Question              string   `json:"question"`
	EndDate               string   `json:"endDate"`
	Active                bool     `json:"active"`
	Closed                bool     `json:"closed"`
	Outcomes              Outcomes `json:"outcomes"`
	OrderMinSize          *float64 `json:"orderMinSize"`
	OrderPriceMinTickSize *float64 `json:"orderPriceMinTickSize"`
}

// Event represents a Gamma API event
type Event struct {
	ID       ID       `json:"id"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Question string   `json:"question"`
	Markets  []Market `json:"markets"`
	EndDate  string   `json:"endDate"`
	Active   bool     `json:"active"`
	Closed   bool     `json:"closed"`
}

// Metadata converts the event into analysis metadata. Markets without a
// condition id are skipped and returned by name in skipped.
func (e Event) Metadata(slug string) (meta model.EventMetadata, skipped []string, err error) {
	if slug == "" {
		slug = e.Slug
	}
	markets := make(map[string]model.MarketMetadata, len(e.Markets))
	for i, m := range e.Markets {
		if m.ConditionID == "" {
			skipped = append(skipped, firstNonEmpty(m.Slug, m.Question, fmt.Sprintf("market[%d]", i)))
			continue
		}
		minSize := 0.0
		if m.OrderMinSize != nil {
			minSize = *m.OrderMinSize
		}
		tick := defaultTickSize
		if m.OrderPriceMinTickSize != nil && *m.OrderPriceMinTickSize != 0 {
			tick = *m.OrderPriceMinTickSize
		}
		markets[m.ConditionID] = model.MarketMetadata{
			ConditionID:  m.ConditionID,
			Question:     firstNonEmpty(m.Question, m.Slug, m.ConditionID),
			MinOrderSize: minSize,
			TickSize:     tick,
			Outcomes:     append([]string(nil), m.Outcomes...),
			Slug:         m.Slug,
		}
	}
	if len(markets) == 0 {
		return model.EventMetadata{}, skipped, ErrNoMarkets
	}
	return model.EventMetadata{
		ID:      int64(e.ID),
		Title:   firstNonEmpty(e.Title, e.Question, slug),
		Slug:    slug,
		Markets: markets,
	}, skipped, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

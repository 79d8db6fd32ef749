package gammaapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomesDecoding(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected Outcomes
	}{
		{"array", `["Yes","No"]`, Outcomes{"Yes", "No"}},
		{"encoded string", `"[\"Yes\",\"No\"]"`, Outcomes{"Yes", "No"}},
		{"plain string", `"Yes"`, Outcomes{"Yes"}},
		{"numbers", `[1, 2]`, Outcomes{"1", "2"}},
		{"null", `null`, nil},
		{"empty string", `""`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Outcomes
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &o))
			assert.Equal(t, tt.expected, o)
		})
	}
}

func TestEventMetadata(t *testing.T) {
	var e Event
	doc := `{"id": 12, "title": "", "question": "Q?", "markets": [
		{"conditionId": "a", "slug": "a-slug", "orderMinSize": 5, "orderPriceMinTickSize": 0},
		{"question": "no id"}
	]}`
	require.NoError(t, json.Unmarshal([]byte(doc), &e))

	meta, skipped, err := e.Metadata("event-slug")
	require.NoError(t, err)
	assert.Equal(t, int64(12), meta.ID)
	assert.Equal(t, "Q?", meta.Title)
	assert.Equal(t, "event-slug", meta.Slug)
	assert.Equal(t, []string{"no id"}, skipped)
	assert.Equal(t, "a-slug", meta.Markets["a"].Question)
	assert.Equal(t, 5.0, meta.Markets["a"].MinOrderSize)
	assert.Equal(t, 0.01, meta.Markets["a"].TickSize)
}

func TestIDRejectsGarbage(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
}

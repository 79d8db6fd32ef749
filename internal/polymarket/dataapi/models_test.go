package dataapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liamashdown/polywatch/internal/model"
)

func TestIndex(t *testing.T) {
	tests := []struct {
		raw      string
		expected model.OutcomeIndex
	}{
		{`1`, model.Index(1)},
		{`"0"`, model.Index(0)},
		{`2.0`, model.Index(2)},
		{`null`, model.NoIndex()},
		{``, model.NoIndex()},
		{`"yes"`, model.NoIndex()},
		{`1.5`, model.NoIndex()},
	}
	for _, tt := range tests {
		tr := Trade{OutcomeIndex: json.RawMessage(tt.raw)}
		assert.Equal(t, tt.expected, tr.Index(), "raw %q", tt.raw)
	}
}

func TestKeyIgnoresWallet(t *testing.T) {
	a := Trade{ProxyWallet: "a", TransactionHash: "0x1", ConditionID: "c", Size: 1, Price: 0.5, Timestamp: 10}
	b := a
	b.ProxyWallet = "b"
	assert.Equal(t, a.Key(), b.Key())

	b.Price = 0.6
	assert.NotEqual(t, a.Key(), b.Key())
}

package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func productJSON(eans ...string) json.RawMessage {
	items := make([]map[string]any, 0, len(eans))
	for i, ean := range eans {
		items = append(items, map[string]any{
			"itemId": string(rune('A' + i)),
			"ean":    ean,
		})
	}
	raw, _ := json.Marshal(map[string]any{
		"productId":   "123",
		"productName": "Test",
		"items":       items,
	})
	return raw
}

// TestProductMatchesEan verifies that discovery keeps only products carrying
// a SKU with the exact tracked EAN. Search results often include near-matches
// the fulltext engine considered relevant.
func TestProductMatchesEan(t *testing.T) {
	tests := []struct {
		name     string
		raw      json.RawMessage
		ean      string
		expected bool
	}{
		{"Exact match", productJSON("7790387011456"), "7790387011456", true},
		{"Match after normalization", productJSON("779-038-701-1456"), "7790387011456", true},
		{"Match on second SKU", productJSON("7790070410122", "7790387011456"), "7790387011456", true},
		{"No match", productJSON("7790070410122"), "7790387011456", false},
		{"No items", productJSON(), "7790387011456", false},
		{"Malformed product", json.RawMessage(`{"items": 1}`), "7790387011456", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, productMatchesEan(tt.raw, tt.ean))
		})
	}
}

// TestProductHasEanPrefix verifies the brand-prefix filter
func TestProductHasEanPrefix(t *testing.T) {
	tests := []struct {
		name     string
		raw      json.RawMessage
		prefix   string
		expected bool
	}{
		{"Prefix match", productJSON("7790387011456"), "77903870", true},
		{"Different brand", productJSON("7790070410122"), "77903870", false},
		{"Invalid ean never matches", productJSON("7790387011459"), "77903870", false},
		{"Short ean shorter than prefix", productJSON("1234"), "77903870", false},
		{"Malformed product", json.RawMessage(`not json`), "77903870", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, productHasEanPrefix(tt.raw, tt.prefix))
		})
	}
}

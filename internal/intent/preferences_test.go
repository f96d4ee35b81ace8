package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreferences_Quantity(t *testing.T) {
	tests := []struct {
		msg  string
		want int
	}{
		{"show me 3 shirts", 3},
		{"find me only 2 dresses", 2},
		{"I want 4 products", 4},
		{"just 1 please", 1},
		{"only 5", 5},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			p := ParsePreferences(tt.msg)
			require.NotNil(t, p.MaxResults)
			assert.Equal(t, tt.want, *p.MaxResults)
		})
	}

	assert.Nil(t, ParsePreferences("show me shirts").MaxResults)
	assert.Nil(t, ParsePreferences("show me 0 items").MaxResults)
}

func TestParsePreferences_PriceCeiling(t *testing.T) {
	tests := []struct {
		msg  string
		want float64
	}{
		{"shoes under $50", 50},
		{"something less than 30", 30},
		{"dresses below ₹999", 999},
		{"cheaper than 19.99", 19.99},
		{"a budget of $200", 200},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			p := ParsePreferences(tt.msg)
			require.NotNil(t, p.PriceMax)
			assert.InDelta(t, tt.want, *p.PriceMax, 0.001)
		})
	}
	assert.Nil(t, ParsePreferences("cheap shoes").PriceMax)
}

func TestParsePreferences_Brand(t *testing.T) {
	assert.Equal(t, "Acme", ParsePreferences("jackets from acme under $100").Brand)
	assert.Equal(t, "Blue Harbor", ParsePreferences("shirts by Blue Harbor").Brand)
	assert.Equal(t, "Nike", ParsePreferences("brand nike with red laces").Brand)
	assert.Empty(t, ParsePreferences("something from the sale").Brand)
	assert.Empty(t, ParsePreferences("sort by price").Brand)
	assert.Empty(t, ParsePreferences("show me jackets").Brand)
}

func TestParsePreferences_SimilarTo(t *testing.T) {
	for msg, want := range map[string]int{
		"more like #2":                2,
		"show me similar to number 3": 3,
		"something like the first":    1,
	} {
		p := ParsePreferences(msg)
		require.NotNil(t, p.SimilarTo, msg)
		assert.Equal(t, want, *p.SimilarTo, msg)
		assert.Nil(t, p.Position, msg)
	}
}

func TestParsePreferences_Position(t *testing.T) {
	for msg, want := range map[string]int{
		"tell me about the second one":     2,
		"what colors does the 3rd come in": 3,
		"is product #4 in stock":           4,
		"price of item 1":                  1,
		"first one please":                 1,
		"what about product 0":             0,
		"how much is #5":                   5,
	} {
		p := ParsePreferences(msg)
		require.NotNil(t, p.Position, msg)
		assert.Equal(t, want, *p.Position, msg)
	}

	assert.Nil(t, ParsePreferences("where is my order number 1001").Position)
	assert.Nil(t, ParsePreferences("order #1002 status").Position)
	assert.Nil(t, ParsePreferences("show me 2 items").Position)
}

func TestParsePreferences_Combined(t *testing.T) {
	p := ParsePreferences("show me 2 jackets from acme under $80")
	require.NotNil(t, p.MaxResults)
	require.NotNil(t, p.PriceMax)
	assert.Equal(t, 2, *p.MaxResults)
	assert.InDelta(t, 80.0, *p.PriceMax, 0.001)
	assert.Equal(t, "Acme", p.Brand)
}

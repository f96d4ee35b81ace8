package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoercePrice(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float", 19.99, 19.99},
		{"int", 20, 20},
		{"plain string", "19.99", 19.99},
		{"dollar", "$19.99", 19.99},
		{"rupee", "₹499", 499},
		{"thousands with dot", "$1,299.50", 1299.5},
		{"lone comma decimal", "12,50", 12.5},
		{"many commas", "1,000,000", 1000000},
		{"whitespace", "  42  ", 42},
		{"garbage", "free", 0},
		{"empty", "", 0},
		{"unsupported type", []int{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CoercePrice(tt.in), 0.0001)
		})
	}
}

func TestPrice_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Price `json:"a"`
		B Price `json:"b"`
		C Price `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "$1,050.25", "b": 12.5, "c": null}`), &v))
	assert.InDelta(t, 1050.25, v.A.Float(), 0.0001)
	assert.InDelta(t, 12.5, v.B.Float(), 0.0001)
	assert.Zero(t, v.C)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$19.90", FormatPrice(19.9))
	assert.Equal(t, "$0.00", FormatPrice(0))
}

func TestProduct_Discount(t *testing.T) {
	p := Product{Price: 75, CompareAtPrice: 100}
	pct, savings, ok := p.Discount()
	require.True(t, ok)
	assert.Equal(t, 25, pct)
	assert.InDelta(t, 25.0, savings, 0.0001)

	p = Product{Price: 100, CompareAtPrice: 80}
	_, _, ok = p.Discount()
	assert.False(t, ok)
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "123", NormalizeID("gid://shopify/Product/123"))
	assert.Equal(t, "77", NormalizeID("gid://other/Thing/77"))
	assert.Equal(t, "abc", NormalizeID(" abc "))
}

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSlots(t *testing.T) {
	tests := []struct {
		msg  string
		want Slots
	}{
		{"where is order 1001?", Slots{OrderNumber: "1001"}},
		{"my order number is #1002", Slots{OrderNumber: "1002"}},
		{"check #1003 for jane@example.com", Slots{OrderNumber: "1003", Email: "jane@example.com"}},
		{"Order ABC12 please", Slots{OrderNumber: "ABC12"}},
		{"my email is Jane.Doe+shop@Example.co.uk", Slots{Email: "jane.doe+shop@example.co.uk"}},
		{"what is my order status", Slots{}},
		{"tell me about product #2", Slots{}},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSlots(tt.msg))
		})
	}
}

func TestBareToken(t *testing.T) {
	tok, ok := BareToken("1001")
	assert.True(t, ok)
	assert.Equal(t, "1001", tok)

	tok, ok = BareToken("#abc123.")
	assert.True(t, ok)
	assert.Equal(t, "ABC123", tok)

	_, ok = BareToken("hello there")
	assert.False(t, ok)
	_, ok = BareToken("thanks")
	assert.False(t, ok)
}

package compose

import (
	"context"
	"regexp"

	"github.com/Veraticus/shopassist/internal/llm"
)

// Canned general replies.
const (
	GreetingReply = "Hello! I'm your shopping assistant. I can help you find products, check prices, answer questions about items, and look up your orders. What can I help you with today?"
	HelpReply     = "I'm here to help! I can:\n• Find products based on your preferences\n• Answer questions about specific items (price, sizes, colors, availability)\n• Check your order status\n• Provide product recommendations\n\nJust tell me what you're looking for or ask me any question!"
	ThanksReply   = "You're welcome! I'm glad I could help. Is there anything else you'd like to know about our products or services?"
	GeneralReply  = "Hello! I'm here to help you find products and check your orders. How can I assist you today?"
)

var (
	greetingPattern = regexp.MustCompile(`(?i)\b(?:hello|hi|hey|good\s+(?:morning|afternoon|evening))\b`)
	helpPattern     = regexp.MustCompile(`(?i)\b(?:help|assist|support)\b`)
	thanksPattern   = regexp.MustCompile(`(?i)\b(?:thanks?|thank\s+you|appreciate)`)
)

const generalSystemPrompt = `You are a friendly e-commerce chatbot assistant. You help customers find products and check their orders.
Keep replies warm, brief (2-3 sentences) and focused on how you can help with shopping.
If users ask about products, encourage them to describe what they're looking for.
If they ask about orders, let them know they can provide an order number and email.`

// GeneralAnswer replies to small talk and help requests.
func (c *Composer) GeneralAnswer(ctx context.Context, message string) string {
	switch {
	case greetingPattern.MatchString(message):
		return GreetingReply
	case helpPattern.MatchString(message):
		return HelpReply
	case thanksPattern.MatchString(message):
		return ThanksReply
	}
	out, ok := c.generate(ctx, "general", llm.Request{
		System:      generalSystemPrompt,
		User:        message,
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if ok {
		return out
	}
	return GeneralReply
}

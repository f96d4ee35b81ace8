package compose

import (
	"fmt"
	"strings"

	"github.com/Veraticus/shopassist/internal/resolver"
)

// MaxFollowUps caps the suggestions returned by FollowUps.
const MaxFollowUps = 4

// ErrorReply is the catch-all reply for a failed turn.
const ErrorReply = "Sorry, I'm having trouble processing your request right now. Please try again in a moment."

var productFollowUps = []string{
	"Is this available in other colors?",
	"What sizes are available?",
	"Tell me about the material",
	"Is there any discount on this?",
	"How much does this cost?",
	"Is this in stock?",
	"Show me similar products",
}

// GeneralFollowUps are offered after small talk.
var GeneralFollowUps = []string{
	"Show me popular products",
	"I'm looking for a gift",
	"What's new in your store?",
	"Can you help me find something specific?",
}

// OrderFollowUps are offered after an order answer.
var OrderFollowUps = []string{
	"What's the status of my order?",
	"What items are in my order?",
	"What's the shipping address?",
}

var answeredMarkers = map[resolver.QuestionType][]string{
	resolver.TypeColor:        {"color"},
	resolver.TypeSize:         {"size"},
	resolver.TypeMaterial:     {"material"},
	resolver.TypeDiscount:     {"discount"},
	resolver.TypePrice:        {"cost", "price"},
	resolver.TypeAvailability: {"stock"},
}

// FollowUps suggests product questions, dropping the kind just answered.
func FollowUps(answered resolver.QuestionType) []string {
	markers := answeredMarkers[answered]
	out := make([]string, 0, MaxFollowUps)
	for _, q := range productFollowUps {
		if containsAny(strings.ToLower(q), markers) {
			continue
		}
		out = append(out, q)
		if len(out) == MaxFollowUps {
			break
		}
	}
	return out
}

// Clarify asks which product an unresolved question is about. shown is the
// number of products on the current page.
func Clarify(res resolver.Resolution, shown int) string {
	switch {
	case res.Position != 0 && shown == 0:
		return "I don't have any recent search results to pick from. What product would you like to know about?"
	case res.Position != 0:
		noun := "products"
		if shown == 1 {
			noun = "product"
		}
		return fmt.Sprintf("I only showed %d %s in the last results, so I'm not sure which one you mean by #%d. Could you pick a number between 1 and %d?",
			shown, noun, res.Position, shown)
	default:
		return NoProductReply
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

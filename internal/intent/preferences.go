// Package intent extracts what a shopper is asking for: result-shaping
// preferences parsed from the raw text, and the LLM-classified intent with
// its slots.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/shopassist/internal/catalog"
)

// Preferences are result-shaping hints parsed from one message.
// A nil pointer or empty string means the message did not mention it.
type Preferences struct {
	MaxResults *int     `json:"max_results,omitempty"`
	PriceMax   *float64 `json:"price_max,omitempty"`
	Brand      string   `json:"brand,omitempty"`
	SimilarTo  *int     `json:"similar_to,omitempty"`
	Position   *int     `json:"position,omitempty"`
}

var (
	quantityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:show|find|get|want|give)\s+(?:me\s+)?(?:only\s+)?(\d+)\s+`),
		regexp.MustCompile(`(?i)\b(\d+)\s+(?:products?|items?|things?|options?|results?)\b`),
		regexp.MustCompile(`(?i)\bjust\s+(\d+)\b`),
		regexp.MustCompile(`(?i)\bonly\s+(\d+)\b`),
	}

	pricePattern = regexp.MustCompile(
		`(?i)\b(?:under|less\s+than|below|cheaper\s+than|budget\s+of|up\s+to|max(?:imum)?\s+of)\s+(?:\$|₹|rs\.?\s*)?(\d+(?:[.,]\d+)?)`)

	brandPattern = regexp.MustCompile(`(?i)\b(?:from|by|brand)\s+([a-z][a-z0-9&'\-]*(?:\s+[a-z0-9&'\-]+){0,3})`)

	similarPattern = regexp.MustCompile(
		`(?i)\b(?:more|similar|others?|something)\s+(?:like|to)\s+(?:the\s+)?(?:#\s*|number\s+|no\.?\s*|product\s+|item\s+)?(\d+|first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\b`)

	ordinalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bthe\s+(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\b`),
		regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\s+(?:one|product|item|option|result)\b`),
	}
	numberedPattern = regexp.MustCompile(`(?i)(?:\b(?:product|item|number|option|result|no\.?)\s*#?\s*|#\s*)(\d+)\b`)

	// Order references look like positional ones and are removed first.
	orderRefPattern = regexp.MustCompile(`(?i)\border\s*(?:number|no\.?|id)?\s*(?:is\s+)?#?\s*\d+`)

	brandStopwords = map[string]struct{}{
		"under": {}, "below": {}, "less": {}, "cheaper": {}, "with": {}, "in": {}, "for": {},
		"that": {}, "which": {}, "and": {}, "only": {}, "please": {}, "size": {}, "color": {},
		"colour": {}, "at": {}, "up": {}, "budget": {}, "max": {}, "maximum": {}, "priced": {},
		"costing": {}, "around": {}, "or": {},
	}
	brandRejects = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "your": {}, "my": {}, "you": {}, "me": {}, "this": {},
		"that": {}, "price": {}, "popularity": {}, "rating": {}, "number": {}, "any": {},
	}

	ordinals = map[string]int{
		"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
		"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	}
)

// ParsePreferences extracts quantity, price ceiling, brand, similar-to and
// positional references from message. It never fails.
func ParsePreferences(message string) Preferences {
	var prefs Preferences

	for _, re := range quantityPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				prefs.MaxResults = &n
				break
			}
		}
	}

	if m := pricePattern.FindStringSubmatch(message); m != nil {
		if v := catalog.CoercePrice(m[1]); v > 0 {
			prefs.PriceMax = &v
		}
	}

	prefs.Brand = parseBrand(message)

	if m := similarPattern.FindStringSubmatch(message); m != nil {
		if n, ok := parseIndex(m[1]); ok {
			prefs.SimilarTo = &n
		}
	}

	if prefs.SimilarTo == nil {
		prefs.Position = parsePosition(message)
	}

	// A bare count next to a positional word is a position, not a quantity:
	// "the 2nd item" or "item 2".
	if prefs.Position != nil && prefs.MaxResults != nil && *prefs.MaxResults == *prefs.Position {
		prefs.MaxResults = nil
	}

	return prefs
}

func parseBrand(message string) string {
	m := brandPattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	words := strings.Fields(m[1])
	kept := make([]string, 0, len(words))
	for _, w := range words {
		lw := strings.ToLower(strings.Trim(w, ".,!?;:"))
		if _, stop := brandStopwords[lw]; stop {
			break
		}
		if lw == "" {
			break
		}
		kept = append(kept, lw)
	}
	if len(kept) == 0 {
		return ""
	}
	if _, reject := brandRejects[kept[0]]; reject {
		return ""
	}
	for i, w := range kept {
		kept[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(kept, " ")
}

func parsePosition(message string) *int {
	text := orderRefPattern.ReplaceAllString(message, " ")

	for _, re := range ordinalPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, ok := parseIndex(m[1]); ok {
				return &n
			}
		}
	}
	if m := numberedPattern.FindStringSubmatch(text); m != nil {
		if n, ok := parseIndex(m[1]); ok {
			return &n
		}
	}
	return nil
}

func parseIndex(s string) (int, bool) {
	if n, ok := ordinals[strings.ToLower(s)]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

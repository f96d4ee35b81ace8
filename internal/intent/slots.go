package intent

import (
	"regexp"
	"strings"
)

// Slots are order lookup fields found in free text.
type Slots struct {
	OrderNumber string
	Email       string
}

// Empty reports whether no slot was found.
func (s Slots) Empty() bool {
	return s.OrderNumber == "" && s.Email == ""
}

var (
	emailPattern       = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	orderNumberPattern = regexp.MustCompile(
		`(?i)\border\s*(?:number|no\.?|id)?\s*(?:is\s+|:\s*)?#?\s*([a-z0-9\-]*\d[a-z0-9\-]*)\b`)
	hashNumberPattern = regexp.MustCompile(`#\s*(\d{3,})\b`)
	bareTokenPattern  = regexp.MustCompile(`^#?\s*([A-Za-z0-9\-]{2,20})[.!]?$`)
)

// ExtractSlots finds an email address and an order number in message.
// Order numbers are only recognized next to the word "order" or as "#1234",
// so positional product references are not mistaken for them.
func ExtractSlots(message string) Slots {
	var s Slots
	if m := emailPattern.FindString(message); m != "" {
		s.Email = strings.ToLower(m)
	}

	text := emailPattern.ReplaceAllString(message, " ")
	if m := orderNumberPattern.FindStringSubmatch(text); m != nil {
		s.OrderNumber = strings.ToUpper(m[1])
	} else if m := hashNumberPattern.FindStringSubmatch(text); m != nil {
		s.OrderNumber = m[1]
	}
	return s
}

// BareToken returns message as a candidate order number when the whole
// message is one short token, e.g. a reply to "what is your order number?".
func BareToken(message string) (string, bool) {
	m := bareTokenPattern.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return "", false
	}
	tok := m[1]
	if !strings.ContainsAny(tok, "0123456789") {
		return "", false
	}
	return strings.ToUpper(tok), true
}

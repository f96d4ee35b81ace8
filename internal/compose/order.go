package compose

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/llm"
)

var (
	addressQuestion = regexp.MustCompile(`(?i)\b(?:address|addresses|deliver(?:y|ed)?\s+to|ship(?:ping|ped)?\s+to|billing|bill\s+to)\b`)
	statusQuestion  = regexp.MustCompile(`(?i)\b(?:status|progress|shipped|delivered|tracking|track|where)\b`)
	itemsQuestion   = regexp.MustCompile(`(?i)\b(?:items?|products?|contents|what\s+did\s+i\s+(?:order|buy))\b`)
	billingWord     = regexp.MustCompile(`(?i)\bbill(?:ing)?\b`)
	shippingWord    = regexp.MustCompile(`(?i)\b(?:ship(?:ping|ped)?|deliver(?:y|ed)?)\b`)
)

var paymentExplanations = map[string]string{
	"paid":               "Your payment has been processed successfully.",
	"partially_paid":     "We have received partial payment for your order.",
	"pending":            "Your payment is being processed.",
	"authorized":         "Your payment method has been authorized.",
	"partially_refunded": "Part of your payment has been refunded.",
	"refunded":           "Your payment has been fully refunded.",
	"voided":             "Your payment has been cancelled.",
}

var fulfillmentExplanations = map[string]string{
	"unfulfilled": "Your order hasn't been shipped yet.",
	"partial":     "Some items in your order have been shipped.",
	"fulfilled":   "Your order has been shipped.",
	"restocked":   "Your order has been cancelled and items returned to stock.",
}

const orderSystemPrompt = `You are a helpful customer service assistant. Based on the user's question about their order, give a clear, informative reply that addresses the specific question, includes the relevant order details and explains the order status in simple terms. Stay focused on what they asked.`

// OrderAnswer answers question about o. Address, status and item questions
// are answered from the record; anything else goes to the model. addressType
// ("shipping" or "billing") narrows address answers when the classifier
// extracted one.
func (c *Composer) OrderAnswer(ctx context.Context, o *catalog.Order, question, addressType string) string {
	if o == nil {
		return "I couldn't find any orders matching your request. Please check your order number or email address."
	}
	switch {
	case addressQuestion.MatchString(question) || addressType != "":
		return AddressAnswer(o, question, addressType)
	case statusQuestion.MatchString(question):
		return StatusAnswer(o)
	case itemsQuestion.MatchString(question):
		return ItemsAnswer(o)
	}

	out, ok := c.generate(ctx, "order", llm.Request{
		System:      orderSystemPrompt + "\n\nOrder Information:\n" + orderContext(o),
		User:        question,
		Temperature: 0.3,
		MaxTokens:   400,
	})
	if ok {
		return out
	}
	return OrderFallback(o)
}

// OrderFallback summarizes o in one line.
func OrderFallback(o *catalog.Order) string {
	return fmt.Sprintf("I found your order #%d. Status: %s (Payment), %s (Shipping). Total: %s. Please let me know if you have specific questions!",
		o.OrderNumber, orNA(o.FinancialStatus), fulfillment(o), orderTotal(o))
}

// AddressAnswer renders the requested addresses of o.
func AddressAnswer(o *catalog.Order, question, addressType string) string {
	want := strings.ToLower(strings.TrimSpace(addressType))
	if want == "" {
		switch {
		case billingWord.MatchString(question) && !shippingWord.MatchString(question):
			want = "billing"
		case shippingWord.MatchString(question) && !billingWord.MatchString(question):
			want = "shipping"
		}
	}

	var parts []string
	switch want {
	case "shipping":
		if o.ShippingAddress != nil {
			parts = append(parts, formatAddress(o.ShippingAddress, "Shipping"))
		} else {
			parts = append(parts, "No shipping address found for this order.")
		}
	case "billing":
		if o.BillingAddress != nil {
			parts = append(parts, formatAddress(o.BillingAddress, "Billing"))
		} else {
			parts = append(parts, "No billing address found for this order.")
		}
	default:
		if o.ShippingAddress != nil {
			parts = append(parts, formatAddress(o.ShippingAddress, "Shipping"))
		}
		if o.BillingAddress != nil {
			parts = append(parts, formatAddress(o.BillingAddress, "Billing"))
		}
		if len(parts) == 0 {
			parts = append(parts, "No address information found for this order.")
		}
	}
	return fmt.Sprintf("Here are the address details for Order #%d:\n\n%s", o.OrderNumber, strings.Join(parts, "\n\n"))
}

// StatusAnswer explains the payment and shipping status of o.
func StatusAnswer(o *catalog.Order) string {
	payment := strings.ToLower(o.FinancialStatus)
	shipping := fulfillment(o)

	var b strings.Builder
	fmt.Fprintf(&b, "Here's the current status of Order #%d:\n\n", o.OrderNumber)
	fmt.Fprintf(&b, "**Payment Status:** %s\n%s", humanize(orUnknown(payment)), paymentExplanations[payment])
	fmt.Fprintf(&b, "\n\n**Shipping Status:** %s\n%s", humanize(shipping), fulfillmentExplanations[shipping])

	switch {
	case shipping == "unfulfilled" && (payment == "paid" || payment == "authorized"):
		b.WriteString("\n\nYour order will be processed and shipped soon. You'll receive a tracking number once it's dispatched.")
	case shipping == "fulfilled":
		b.WriteString("\n\nYour order has been shipped! Check your email for tracking information.")
	}
	return b.String()
}

// ItemsAnswer lists the line items of o.
func ItemsAnswer(o *catalog.Order) string {
	if len(o.LineItems) == 0 {
		return fmt.Sprintf("No items found for Order #%d.", o.OrderNumber)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the items in Order #%d:\n\n", o.OrderNumber)
	count := 0
	for _, li := range o.LineItems {
		fmt.Fprintf(&b, "• %dx %s", li.Quantity, li.Name)
		if li.Price.Float() > 0 {
			fmt.Fprintf(&b, " - %s each", catalog.FormatPrice(li.Price.Float()))
		}
		b.WriteString("\n")
		count += li.Quantity
	}
	fmt.Fprintf(&b, "\n**Total:** %d items", count)
	if o.TotalPrice.Float() > 0 {
		fmt.Fprintf(&b, " - %s", orderTotal(o))
	}
	return b.String()
}

func formatAddress(a *catalog.Address, label string) string {
	lines := []string{fmt.Sprintf("**%s Address:**", label)}
	add := func(field, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, field+": "+v)
		}
	}
	add("Name", a.Name)
	add("Company", a.Company)
	add("Address", a.Address1)
	add("Address 2", a.Address2)

	var location []string
	for _, v := range []string{a.City, a.Province, a.Zip} {
		if v = strings.TrimSpace(v); v != "" {
			location = append(location, v)
		}
	}
	add("Location", strings.Join(location, ", "))
	add("Country", a.Country)
	add("Phone", a.Phone)
	return strings.Join(lines, "\n")
}

func orderContext(o *catalog.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d:\n", o.OrderNumber)
	fmt.Fprintf(&b, "- Status: %s (Payment), %s (Shipping)\n", orNA(o.FinancialStatus), fulfillment(o))
	fmt.Fprintf(&b, "- Total: %s\n", orderTotal(o))
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Date: %s\n", o.CreatedAt.Format("January 2, 2006"))
	}
	fmt.Fprintf(&b, "- Items: %d items\n", len(o.LineItems))
	if len(o.LineItems) > 0 {
		b.WriteString("\nItems Ordered:\n")
		for _, li := range o.LineItems {
			fmt.Fprintf(&b, "- %dx %s (%s each)\n", li.Quantity, li.Name, catalog.FormatPrice(li.Price.Float()))
		}
	}
	for _, a := range []struct {
		label string
		addr  *catalog.Address
	}{{"Shipping", o.ShippingAddress}, {"Billing", o.BillingAddress}} {
		if a.addr != nil {
			fmt.Fprintf(&b, "\n%s Address: %s, %s, %s, %s %s", a.label, a.addr.Name, a.addr.Address1, a.addr.City, a.addr.Province, a.addr.Zip)
		}
	}
	return b.String()
}

func fulfillment(o *catalog.Order) string {
	if s := strings.ToLower(strings.TrimSpace(o.FulfillmentStatus)); s != "" {
		return s
	}
	return "unfulfilled"
}

func orderTotal(o *catalog.Order) string {
	total := catalog.FormatPrice(o.TotalPrice.Float())
	if o.Currency != "" {
		total += " " + o.Currency
	}
	return total
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// humanize turns "partially_paid" into "Partially Paid".
func humanize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

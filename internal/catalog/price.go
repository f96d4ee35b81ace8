package catalog

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Price is a monetary amount. It decodes from JSON numbers and from
// formatted strings such as "$1,299.00" or "₹499".
type Price float64

// Float returns the amount as a float64.
func (p Price) Float() float64 {
	return float64(p)
}

// UnmarshalJSON accepts numbers, strings and null.
func (p *Price) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Price(CoercePrice(raw))
	return nil
}

// CoercePrice converts a loosely typed price value into a float64.
// Currency symbols and whitespace are dropped. When both a comma and a dot
// appear the comma is a thousands separator, a lone comma is a decimal
// separator. Anything unparseable becomes 0.
func CoercePrice(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case Price:
		return float64(val)
	case json.Number:
		return coercePriceString(val.String())
	case string:
		return coercePriceString(val)
	default:
		return 0
	}
}

func coercePriceString(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		if strings.Count(cleaned, ",") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// FormatPrice renders an amount with two decimals, e.g. "$19.99".
func FormatPrice(amount float64) string {
	return "$" + decimal.NewFromFloat(amount).StringFixed(2)
}

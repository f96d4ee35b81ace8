package search

import (
	"strings"

	"github.com/Veraticus/shopassist/internal/catalog"
)

// Filters narrow a result set after ranking.
type Filters struct {
	PriceMax *float64 `json:"price_max,omitempty"`
	Brand    string   `json:"brand,omitempty"`
}

// Active reports whether any filter is set.
func (f Filters) Active() bool {
	return f.PriceMax != nil || strings.TrimSpace(f.Brand) != ""
}

// Apply keeps products priced at or below PriceMax whose vendor contains
// Brand (case-insensitive). Applying twice yields the same result.
func (f Filters) Apply(products []catalog.Product) []catalog.Product {
	if !f.Active() {
		return products
	}
	brand := strings.ToLower(strings.TrimSpace(f.Brand))
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if f.PriceMax != nil && p.Price.Float() > *f.PriceMax {
			continue
		}
		if brand != "" && !strings.Contains(strings.ToLower(p.Vendor), brand) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Describe renders the active filters, e.g. "under $50.00, from Acme".
func (f Filters) Describe() string {
	var parts []string
	if f.PriceMax != nil {
		parts = append(parts, "under "+catalog.FormatPrice(*f.PriceMax))
	}
	if b := strings.TrimSpace(f.Brand); b != "" {
		parts = append(parts, "from "+b)
	}
	return strings.Join(parts, ", ")
}

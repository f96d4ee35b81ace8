// Package catalog holds the product and order records the assistant talks
// about, plus the collaborators that fetch and rank them.
package catalog

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a product or order does not exist.
var ErrNotFound = errors.New("not found")

// shopifyProductPrefix is stripped from ids returned by the ranked index.
const shopifyProductPrefix = "gid://shopify/Product/"

// Image is a product image reference.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// Option is a named product option such as Color or Size.
// Position is 1-based and maps onto Variant.Option1..Option3.
type Option struct {
	Name     string   `json:"name"`
	Position int      `json:"position,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// Variant is a purchasable configuration of a product.
type Variant struct {
	ID             string `json:"id,omitempty"`
	Title          string `json:"title"`
	SKU            string `json:"sku,omitempty"`
	Price          Price  `json:"price"`
	CompareAtPrice Price  `json:"compare_at_price,omitempty"`
	Inventory      int    `json:"inventory_quantity"`
	Option1        string `json:"option1,omitempty"`
	Option2        string `json:"option2,omitempty"`
	Option3        string `json:"option3,omitempty"`
}

// Product is a point-in-time snapshot of a catalog product.
type Product struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Handle         string    `json:"handle,omitempty"`
	Vendor         string    `json:"vendor,omitempty"`
	ProductType    string    `json:"product_type,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Status         string    `json:"status,omitempty"`
	Price          Price     `json:"price"`
	CompareAtPrice Price     `json:"compare_at_price,omitempty"`
	Inventory      int       `json:"inventory"`
	Images         []Image   `json:"images,omitempty"`
	Variants       []Variant `json:"variants,omitempty"`
	Options        []Option  `json:"options,omitempty"`
	Score          float64   `json:"score,omitempty"`
}

// InStock reports whether any unit is available.
func (p *Product) InStock() bool {
	return p.Inventory > 0
}

// Discount returns the percentage off and the absolute savings when the
// compare-at price is above the selling price.
func (p *Product) Discount() (percent int, savings float64, ok bool) {
	price, compare := p.Price.Float(), p.CompareAtPrice.Float()
	if compare <= 0 || compare <= price {
		return 0, 0, false
	}
	savings = compare - price
	percent = int(savings/compare*100 + 0.5)
	return percent, savings, true
}

// Address is a postal address attached to an order.
type Address struct {
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// LineItem is one purchased product on an order.
type LineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    Price  `json:"price"`
	Discount Price  `json:"total_discount,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
	SKU      string `json:"sku,omitempty"`
}

// Total returns quantity times unit price.
func (li LineItem) Total() float64 {
	return float64(li.Quantity) * li.Price.Float()
}

// Order is a point-in-time snapshot of a customer order.
type Order struct {
	ID                string     `json:"id"`
	OrderNumber       int        `json:"order_number"`
	Email             string     `json:"email"`
	FinancialStatus   string     `json:"financial_status,omitempty"`
	FulfillmentStatus string     `json:"fulfillment_status,omitempty"`
	Subtotal          Price      `json:"subtotal_price,omitempty"`
	TotalTax          Price      `json:"total_tax,omitempty"`
	TotalPrice        Price      `json:"total_price"`
	Currency          string     `json:"currency,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LineItems         []LineItem `json:"line_items,omitempty"`
	ShippingAddress   *Address   `json:"shipping_address,omitempty"`
	BillingAddress    *Address   `json:"billing_address,omitempty"`
}

// NormalizeID strips the Shopify global-id prefix from a product id.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, shopifyProductPrefix) {
		return strings.TrimPrefix(id, shopifyProductPrefix)
	}
	if strings.HasPrefix(id, "gid://") {
		if i := strings.LastIndex(id, "/"); i >= 0 {
			return id[i+1:]
		}
	}
	return id
}

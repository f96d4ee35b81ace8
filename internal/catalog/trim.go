package catalog

import "time"

const (
	// MaxSnapshotProducts caps the products stored with one conversation turn.
	MaxSnapshotProducts = 50
	// MaxSnapshotImages caps the images kept per stored product.
	MaxSnapshotImages = 5
)

// ProductSnapshot is the trimmed projection of a product persisted with a turn.
type ProductSnapshot struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Vendor      string  `json:"vendor,omitempty"`
	ProductType string  `json:"product_type,omitempty"`
	Inventory   int     `json:"inventory"`
	Images      []Image `json:"images,omitempty"`
}

// OrderSnapshot is the trimmed projection of an order persisted with a turn.
type OrderSnapshot struct {
	OrderNumber       int       `json:"order_number"`
	FinancialStatus   string    `json:"financial_status,omitempty"`
	FulfillmentStatus string    `json:"fulfillment_status,omitempty"`
	TotalPrice        float64   `json:"total_price"`
	Currency          string    `json:"currency,omitempty"`
	ItemCount         int       `json:"item_count"`
	CreatedAt         time.Time `json:"created_at"`
}

// TrimProduct projects a product down to the fields needed to redisplay it.
func TrimProduct(p *Product) ProductSnapshot {
	images := p.Images
	if len(images) > MaxSnapshotImages {
		images = images[:MaxSnapshotImages]
	}
	return ProductSnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price.Float(),
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Inventory:   p.Inventory,
		Images:      append([]Image(nil), images...),
	}
}

// TrimProducts projects at most MaxSnapshotProducts products.
func TrimProducts(products []Product) []ProductSnapshot {
	if len(products) > MaxSnapshotProducts {
		products = products[:MaxSnapshotProducts]
	}
	out := make([]ProductSnapshot, 0, len(products))
	for i := range products {
		out = append(out, TrimProduct(&products[i]))
	}
	return out
}

// TrimOrder projects an order down to its summary fields.
func TrimOrder(o *Order) OrderSnapshot {
	items := 0
	for _, li := range o.LineItems {
		items += li.Quantity
	}
	return OrderSnapshot{
		OrderNumber:       o.OrderNumber,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		TotalPrice:        o.TotalPrice.Float(),
		Currency:          o.Currency,
		ItemCount:         items,
		CreatedAt:         o.CreatedAt,
	}
}

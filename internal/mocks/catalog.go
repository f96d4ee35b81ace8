package mocks

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/shopassist/internal/catalog"
)

// Catalog is an in-memory catalog.Store and catalog.Searcher.
//
// Search ranks products by how many query words appear in the title, vendor
// or type, and returns ids with the Shopify global-id prefix so callers have
// to normalize them.
type Catalog struct {
	mu       sync.Mutex
	products []catalog.Product
	orders   []catalog.Order

	SearchErr error
	FetchErr  error
	OrderErr  error

	searches []SearchCall
}

// SearchCall records one Search invocation.
type SearchCall struct {
	Query string
	Limit int
}

// NewCatalog creates a catalog holding products.
func NewCatalog(products ...catalog.Product) *Catalog {
	return &Catalog{products: products}
}

// AddOrder adds an order.
func (c *Catalog) AddOrder(o catalog.Order) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, o)
	return c
}

// Searches returns the recorded Search calls.
func (c *Catalog) Searches() []SearchCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SearchCall(nil), c.searches...)
}

// Search implements catalog.Searcher.
func (c *Catalog) Search(_ context.Context, query string, limit int) ([]catalog.Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searches = append(c.searches, SearchCall{Query: query, Limit: limit})
	if c.SearchErr != nil {
		return nil, c.SearchErr
	}

	words := strings.Fields(strings.ToLower(query))
	var hits []catalog.Hit
	for _, p := range c.products {
		text := strings.ToLower(p.Title + " " + p.Vendor + " " + p.ProductType + " " + strings.Join(p.Tags, " "))
		matched := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(text, strings.TrimSuffix(w, "s")) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, catalog.Hit{
			ID:    "gid://shopify/Product/" + p.ID,
			Score: float64(matched) / float64(len(words)+1),
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// FetchProducts implements catalog.Store.
func (c *Catalog) FetchProducts(_ context.Context, ids []string) ([]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FetchErr != nil {
		return nil, c.FetchErr
	}
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		id = catalog.NormalizeID(id)
		for _, p := range c.products {
			if p.ID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// Product implements catalog.Store.
func (c *Catalog) Product(_ context.Context, id string) (*catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FetchErr != nil {
		return nil, c.FetchErr
	}
	id = catalog.NormalizeID(id)
	for _, p := range c.products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// FetchOrder implements catalog.Store.
func (c *Catalog) FetchOrder(_ context.Context, number int, email string) (*catalog.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.OrderErr != nil {
		return nil, c.OrderErr
	}
	for _, o := range c.orders {
		if o.OrderNumber == number && strings.EqualFold(o.Email, email) {
			cp := o
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// Products builds n products titled "<noun> N" with ids "1".."n".
func Products(noun string, n int) []catalog.Product {
	out := make([]catalog.Product, n)
	for i := range out {
		id := strconv.Itoa(i + 1)
		out[i] = catalog.Product{
			ID:          id,
			Title:       strings.TrimSpace(noun + " " + id),
			Vendor:      "Acme",
			ProductType: noun,
			Price:       catalog.Price(10 * (i + 1)),
			Inventory:   5,
		}
	}
	return out
}

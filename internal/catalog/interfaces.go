package catalog

import "context"

// Hit is one ranked search result. ID may carry a global-id prefix and must
// be passed through NormalizeID before a catalog lookup.
type Hit struct {
	ID    string
	Score float64
}

// Searcher ranks catalog products against free text.
type Searcher interface {
	// Search returns up to limit hits ordered by descending relevance.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Store reads product and order records.
type Store interface {
	// FetchProducts returns the products for ids in the given order.
	// Unknown ids are skipped.
	FetchProducts(ctx context.Context, ids []string) ([]Product, error)

	// Product returns a single product or ErrNotFound.
	Product(ctx context.Context, id string) (*Product, error)

	// FetchOrder returns the order matching number and email or ErrNotFound.
	// Email comparison is case-insensitive.
	FetchOrder(ctx context.Context, number int, email string) (*Order, error)
}

package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/catalog"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// SearchHit is one product in a catalog search response.
type SearchHit struct {
	catalog.ProductSnapshot
	Score float64 `json:"score"`
}

// WithCatalog serves the product and order read endpoints. Without it those
// endpoints answer 503.
func WithCatalog(store catalog.Store, searcher catalog.Searcher) Option {
	return func(s *Server) {
		s.catalog = store
		s.searcher = searcher
	}
}

func (s *Server) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil || s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := defaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	hits, err := s.searcher.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("product search failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "product search failed")
		return
	}
	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		id := catalog.NormalizeID(h.ID)
		if _, dup := scores[id]; dup || id == "" {
			continue
		}
		scores[id] = h.Score
		ids = append(ids, id)
	}
	products, err := s.catalog.FetchProducts(r.Context(), ids)
	if err != nil {
		s.logger.Error("product fetch failed", zap.Int("ids", len(ids)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "product search failed")
		return
	}

	results := make([]SearchHit, 0, len(products))
	for i := range products {
		results = append(results, SearchHit{
			ProductSnapshot: catalog.TrimProduct(&products[i]),
			Score:           scores[products[i].ID],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	id := r.PathValue("product_id")
	p, err := s.catalog.Product(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "Product not found")
		return
	case err != nil:
		s.logger.Error("failed to load product", zap.String("product_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleOrder looks an order up by number. The email must match, as in the
// conversational lookup.
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	number, err := strconv.Atoi(strings.TrimPrefix(r.PathValue("order_number"), "#"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "order number must be a positive integer")
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	o, err := s.catalog.FetchOrder(r.Context(), number, email)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
		return
	case err != nil:
		s.logger.Error("failed to load order", zap.Int("order_number", number), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Package search turns a shopper query into a page of ranked, filtered
// products plus related suggestions, caching the full result set so later
// pages are served without searching again.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/session"
)

const (
	// PageSize is the number of products shown per page.
	PageSize = 5
	// DefaultMaxResults is assumed when the shopper did not ask for a count.
	DefaultMaxResults = 50
	// MaxCandidates caps the ranked search limit.
	MaxCandidates = 100
	// SuggestionLimit is the ranked search limit for suggestions.
	SuggestionLimit = 20
	// MaxSuggestions caps the suggestions returned.
	MaxSuggestions = 5
)

// Request is one search turn.
type Request struct {
	// Message is the raw shopper text.
	Message string
	// Keywords is the classifier's query; Message is used when empty.
	Keywords string
	// MaxResults is how many products the shopper asked for.
	MaxResults *int
	Filters    Filters
	// SimilarTo is a 1-based position on the current page to search around.
	SimilarTo *int
	// Page is 1-based; values below 1 mean the first page.
	Page int
}

// Result is a rendered page of search results.
type Result struct {
	Reply       string            `json:"reply"`
	Query       string            `json:"query"`
	Products    []catalog.Product `json:"products"`
	Suggestions []catalog.Product `json:"suggestions"`
	FollowUps   []string          `json:"follow_ups,omitempty"`
	Total       int               `json:"total"`
	Page        int               `json:"page"`
	HasMore     bool              `json:"has_more"`
	FromCache   bool              `json:"from_cache"`
	Filters     Filters           `json:"filters"`
	// SimilarNotFound is set when SimilarTo named no product on the page.
	SimilarNotFound bool `json:"similar_not_found,omitempty"`
	SimilarTo       int  `json:"similar_to,omitempty"`
	// Requested is the MaxResults the shopper asked for, or 0.
	Requested int `json:"requested,omitempty"`
	// Exhausted is set when a continuation asked for a page past the end;
	// the page already on screen is left in place.
	Exhausted bool `json:"exhausted,omitempty"`
}

// Continue builds the request for page of the cached search in st, carrying
// the filters and count the cached results were built with.
func Continue(st *session.State, message string, page int) Request {
	req := Request{
		Message:  message,
		Keywords: st.CachedQuery,
		Filters:  Filters{PriceMax: st.CachedParams.PriceMax, Brand: st.CachedParams.Brand},
		Page:     page,
	}
	if req.Message == "" {
		req.Message = st.CachedQuery
	}
	if n := st.CachedParams.MaxResults; n != nil {
		v := *n
		req.MaxResults = &v
	}
	return req
}

// Orchestrator runs searches against the catalog.
type Orchestrator struct {
	searcher catalog.Searcher
	store    catalog.Store
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator.
func New(searcher catalog.Searcher, store catalog.Store, opts ...Option) (*Orchestrator, error) {
	if searcher == nil {
		return nil, fmt.Errorf("search orchestrator: searcher is required")
	}
	if store == nil {
		return nil, fmt.Errorf("search orchestrator: store is required")
	}
	o := &Orchestrator{searcher: searcher, store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("search")
	return o, nil
}

// Search runs req and updates st: the page becomes the numbered products on
// screen, its first product comes into focus, and a fresh result set replaces
// the cache. Collaborator failures are logged and treated as no results; only
// context errors are returned.
func (o *Orchestrator) Search(ctx context.Context, st *session.State, req Request) (*Result, error) {
	res := &Result{Filters: req.Filters, Page: req.Page}
	if res.Page < 1 {
		res.Page = 1
	}
	if req.MaxResults != nil && *req.MaxResults > 0 {
		res.Requested = *req.MaxResults
	}

	query := strings.TrimSpace(req.Keywords)
	if query == "" {
		query = strings.TrimSpace(req.Message)
	}
	if req.SimilarTo != nil {
		res.SimilarTo = *req.SimilarTo
		if p, ok := st.Numbered(*req.SimilarTo); ok {
			query = similarQuery(p)
		} else {
			res.SimilarNotFound = true
		}
	}
	res.Query = query

	useCache := res.Page > 1 && st.CachedResults != nil && strings.EqualFold(query, st.CachedQuery)

	var exact, related []catalog.Product
	g, gctx := errgroup.WithContext(ctx)
	if !useCache {
		g.Go(func() error {
			var err error
			exact, err = o.rank(gctx, query, candidateLimit(req.MaxResults))
			return err
		})
	}
	g.Go(func() error {
		var err error
		related, err = o.rank(gctx, suggestionQuery(query), SuggestionLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if useCache {
		exact = st.CachedResults
		res.FromCache = true
	}
	exact = req.Filters.Apply(exact)
	if !useCache {
		st.CacheResults(query, exact, session.SearchParams{
			PriceMax:   req.Filters.PriceMax,
			Brand:      req.Filters.Brand,
			MaxResults: req.MaxResults,
		})
	}

	display := PageSize
	if res.Requested > 0 && res.Requested < display {
		display = res.Requested
	}
	res.Total = len(exact)
	start := (res.Page - 1) * PageSize
	if useCache && start >= res.Total {
		res.Exhausted = true
		res.Products = []catalog.Product{}
		if st.CurrentPage > 0 {
			res.Page = st.CurrentPage
		}
		res.Suggestions = pickSuggestions(related, st.RecentProducts, req.Filters)
		res.Reply = Reply(res)
		o.logger.Debug("search exhausted",
			zap.String("query", query),
			zap.Int("total", res.Total),
			zap.Int("page", res.Page))
		return res, nil
	}
	end := start + display
	if start > res.Total {
		start = res.Total
	}
	if end > res.Total {
		end = res.Total
	}
	res.Products = append([]catalog.Product(nil), exact[start:end]...)
	res.HasMore = end < res.Total

	st.SetPage(res.Products)
	st.CurrentPage = res.Page
	if len(res.Products) > 0 {
		st.Focus(&res.Products[0])
		if !useCache {
			st.SelectedProduct = nil
		}
	}

	res.Suggestions = pickSuggestions(related, res.Products, req.Filters)
	res.Reply = Reply(res)
	res.FollowUps = followUps(res)

	o.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("total", res.Total),
		zap.Int("page", res.Page),
		zap.Bool("from_cache", res.FromCache),
		zap.Int("suggestions", len(res.Suggestions)),
	)
	return res, nil
}

// rank runs a ranked search and loads the catalog records in ranked order.
func (o *Orchestrator) rank(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	hits, err := o.searcher.Search(ctx, query, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn("ranked search failed", zap.String("query", query), zap.Error(err))
		return nil, nil
	}
	if len(hits) == 0 {
		return nil, nil
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

	products, err := o.store.FetchProducts(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn("catalog fetch failed", zap.Int("ids", len(ids)), zap.Error(err))
		return nil, nil
	}
	for i := range products {
		products[i].Score = scores[products[i].ID]
	}
	return products, nil
}

func candidateLimit(maxResults *int) int {
	n := DefaultMaxResults
	if maxResults != nil && *maxResults > 0 {
		n = *maxResults
	}
	if n*2 > MaxCandidates {
		return MaxCandidates
	}
	return n * 2
}

func similarQuery(p *catalog.Product) string {
	parts := []string{p.Title}
	if p.ProductType != "" {
		parts = append(parts, p.ProductType)
	}
	if p.Vendor != "" {
		parts = append(parts, p.Vendor)
	}
	return strings.Join(parts, " ")
}

func suggestionQuery(query string) string {
	return "related to " + query + " alternative similar"
}

func pickSuggestions(related, page []catalog.Product, filters Filters) []catalog.Product {
	shown := make(map[string]struct{}, len(page))
	for _, p := range page {
		shown[p.ID] = struct{}{}
	}
	out := make([]catalog.Product, 0, MaxSuggestions)
	for _, p := range filters.Apply(related) {
		if _, ok := shown[p.ID]; ok {
			continue
		}
		out = append(out, p)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

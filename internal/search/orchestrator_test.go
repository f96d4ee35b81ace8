package search_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/mocks"
	"github.com/Veraticus/shopassist/internal/search"
	"github.com/Veraticus/shopassist/internal/session"
)

func newOrchestrator(t *testing.T, c *mocks.Catalog) *search.Orchestrator {
	t.Helper()
	o, err := search.New(c, c, search.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return o
}

func ids(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func limitFor(c *mocks.Catalog, query string) int {
	for _, call := range c.Searches() {
		if call.Query == query {
			return call.Limit
		}
	}
	return -1
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func TestNew_RequiresCollaborators(t *testing.T) {
	c := mocks.NewCatalog()
	_, err := search.New(nil, c)
	assert.Error(t, err)
	_, err = search.New(c, nil)
	assert.Error(t, err)
}

func TestSearch_PaginatesFromCache(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 12)...)
	o := newOrchestrator(t, c)
	st := session.NewState("s", time.Now())
	ctx := context.Background()

	first, err := o.Search(ctx, st, search.Request{Message: "show me jackets", Keywords: "jackets"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(first.Products))
	assert.Equal(t, 12, first.Total)
	assert.True(t, first.HasMore)
	assert.False(t, first.FromCache)
	assert.Equal(t, "I found 12 products! Here are the first 5 matches.", first.Reply)
	assert.Equal(t, 100, limitFor(c, "jackets"))
	searchesAfterFirst := len(c.Searches())

	second, err := o.Search(ctx, st, search.Request{Message: "show more", Keywords: "jackets", Page: 2})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, []string{"6", "7", "8", "9", "10"}, ids(second.Products))
	assert.Equal(t, "Here are more results (showing 6-10 of 12).", second.Reply)
	// Only the suggestion search runs again.
	assert.Len(t, c.Searches(), searchesAfterFirst+1)

	third, err := o.Search(ctx, st, search.Request{Keywords: "jackets", Page: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "12"}, ids(third.Products))
	assert.False(t, third.HasMore)
	assert.Equal(t, 3, st.CurrentPage)

	fourth, err := o.Search(ctx, st, search.Request{Keywords: "jackets", Page: 4})
	require.NoError(t, err)
	assert.Empty(t, fourth.Products)
	assert.True(t, fourth.Exhausted)
	assert.Equal(t, "That's all the products I found for your search.", fourth.Reply)
	assert.Equal(t, 3, fourth.Page)
	assert.Equal(t, 3, st.CurrentPage)
	assert.Equal(t, []string{"11", "12"}, ids(st.RecentProducts))

	seen := map[string]bool{}
	for _, r := range []*search.Result{first, second, third} {
		for _, id := range ids(r.Products) {
			assert.False(t, seen[id], "product %s shown twice", id)
			seen[id] = true
		}
	}
}

func TestSearch_UpdatesSessionState(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 7)...)
	o := newOrchestrator(t, c)
	st := session.NewState("s", time.Now())
	st.Select(&catalog.Product{ID: "old", Title: "Old Pick"})

	res, err := o.Search(context.Background(), st, search.Request{Keywords: "jacket"})
	require.NoError(t, err)

	assert.Nil(t, st.SelectedProduct)
	require.NotNil(t, st.ContextProduct)
	assert.Equal(t, "1", st.ContextProduct.ID)
	assert.Equal(t, ids(res.Products), ids(st.RecentProducts))
	assert.Len(t, st.NumberedProducts, 5)
	assert.Equal(t, "jacket", st.CachedQuery)
	assert.Len(t, st.CachedResults, 7)

	p, ok := st.Numbered(3)
	require.True(t, ok)
	assert.Equal(t, "3", p.ID)
}

func TestSearch_Filters(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 8)...)
	o := newOrchestrator(t, c)

	res, err := o.Search(context.Background(), session.NewState("s", time.Now()), search.Request{
		Keywords: "jacket",
		Filters:  search.Filters{PriceMax: floatPtr(30), Brand: "Acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(res.Products))
	assert.Equal(t, "I found 3 products (under $30.00, from Acme) that match your search.", res.Reply)
	for _, p := range res.Suggestions {
		assert.LessOrEqual(t, p.Price.Float(), 30.0)
	}

	res, err = o.Search(context.Background(), session.NewState("s", time.Now()), search.Request{
		Keywords: "jacket",
		Filters:  search.Filters{Brand: "Globex"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Empty(t, res.Suggestions)
	assert.Equal(t, "I couldn't find any products (from Globex) matching your search. Could you try different keywords or be more specific?", res.Reply)
	assert.Equal(t, search.NoResultFollowUps, res.FollowUps)
}

func TestFilters_ApplyIsIdempotent(t *testing.T) {
	f := search.Filters{PriceMax: floatPtr(45)}
	products := mocks.Products("Hat", 9)
	once := f.Apply(products)
	assert.Equal(t, once, f.Apply(once))
	assert.Len(t, once, 4)
	assert.Equal(t, products, search.Filters{}.Apply(products))
}

func TestSearch_SuggestionsExcludePage(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 12)...)
	o := newOrchestrator(t, c)

	res, err := o.Search(context.Background(), session.NewState("s", time.Now()), search.Request{Keywords: "jacket"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Suggestions)
	assert.LessOrEqual(t, len(res.Suggestions), search.MaxSuggestions)

	shown := map[string]bool{}
	for _, id := range ids(res.Products) {
		shown[id] = true
	}
	for _, p := range res.Suggestions {
		assert.False(t, shown[p.ID], "suggestion %s is on the page", p.ID)
	}

	assert.Equal(t, search.SuggestionLimit, limitFor(c, "related to jacket alternative similar"))
}

func TestSearch_SingleRequested(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 4)...)
	o := newOrchestrator(t, c)

	res, err := o.Search(context.Background(), session.NewState("s", time.Now()), search.Request{
		Keywords:   "jacket",
		MaxResults: intPtr(1),
	})
	require.NoError(t, err)
	assert.Len(t, res.Products, 1)
	assert.Equal(t, "Here's the product that matches your search: **Jacket 1**", res.Reply)
	assert.Equal(t, 2, limitFor(c, "jacket"))
	assert.Equal(t, search.SingleMatchFollowUps, res.FollowUps)
}

func TestSearch_NothingExactButSuggestions(t *testing.T) {
	products := []catalog.Product{
		{ID: "1", Title: "Similar Scarf", Vendor: "Acme", Price: 12},
	}
	c := mocks.NewCatalog(products...)
	o := newOrchestrator(t, c)

	res, err := o.Search(context.Background(), session.NewState("s", time.Now()), search.Request{Keywords: "kayak"})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "I couldn't find exact matches for your search. Here are some related suggestions:", res.Reply)
}

func TestSearch_SimilarTo(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Boot", 3)...)
	o := newOrchestrator(t, c)
	st := session.NewState("s", time.Now())
	st.SetPage(mocks.Products("Boot", 3))

	res, err := o.Search(context.Background(), st, search.Request{Message: "more like number 2", SimilarTo: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, "Boot 2 Boot Acme", res.Query)
	assert.False(t, res.SimilarNotFound)

	st.SetPage(nil)
	res, err = o.Search(context.Background(), st, search.Request{Message: "boots like 9", Keywords: "boots", SimilarTo: intPtr(9)})
	require.NoError(t, err)
	assert.True(t, res.SimilarNotFound)
	assert.Contains(t, res.Reply, "I couldn't find product #9 from our recent results.")
}

func TestSearch_BackendFailureIsEmpty(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 3)...)
	c.SearchErr = errors.New("index offline")
	o := newOrchestrator(t, c)

	res, err := o.Search(context.Background(), session.NewState("s", time.Now()), search.Request{Keywords: "jacket"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Products)

	c.SearchErr = nil
	c.FetchErr = errors.New("catalog offline")
	res, err = o.Search(context.Background(), session.NewState("s", time.Now()), search.Request{Keywords: "jacket"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestSearch_CanceledContext(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 3)...)
	c.SearchErr = errors.New("interrupted")
	o := newOrchestrator(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Search(ctx, session.NewState("s", time.Now()), search.Request{Keywords: "jacket"})
	assert.ErrorIs(t, err, context.Canceled)
}

func pricedJackets() []catalog.Product {
	products := mocks.Products("Jacket", 14)
	for i := range products {
		if i%2 == 0 {
			products[i].Price = 20
		} else {
			products[i].Price = 200
		}
	}
	return products
}

func TestSearch_ContinueKeepsFilters(t *testing.T) {
	c := mocks.NewCatalog(pricedJackets()...)
	o := newOrchestrator(t, c)
	st := session.NewState("s", time.Now())
	ctx := context.Background()

	first, err := o.Search(ctx, st, search.Request{
		Message:  "jackets under $50",
		Keywords: "jackets",
		Filters:  search.Filters{PriceMax: floatPtr(50)},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, first.Total)
	assert.Equal(t, "I found 7 products (under $50.00)! Here are the first 5 matches.", first.Reply)

	next := search.Continue(st, "show me more", st.CurrentPage+1)
	assert.Equal(t, "jackets", next.Keywords)
	assert.Equal(t, 2, next.Page)
	require.NotNil(t, next.Filters.PriceMax)
	assert.Equal(t, 50.0, *next.Filters.PriceMax)

	second, err := o.Search(ctx, st, next)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Len(t, second.Products, 2)
	assert.Equal(t, "Here are more results under $50.00 (showing 6-7 of 7).", second.Reply)
	assert.True(t, second.Filters.Active())
	require.NotEmpty(t, second.Suggestions)
	for _, p := range append(append([]catalog.Product(nil), second.Products...), second.Suggestions...) {
		assert.LessOrEqual(t, p.Price.Float(), 50.0, "product %s", p.ID)
	}
}

func TestContinue_CarriesRequestedCount(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 9)...)
	o := newOrchestrator(t, c)
	st := session.NewState("s", time.Now())

	_, err := o.Search(context.Background(), st, search.Request{Keywords: "jackets", MaxResults: intPtr(8)})
	require.NoError(t, err)

	next := search.Continue(st, "", 2)
	assert.Equal(t, "jackets", next.Message)
	require.NotNil(t, next.MaxResults)
	assert.Equal(t, 8, *next.MaxResults)
	assert.False(t, next.Filters.Active())
}

func TestSearch_PastLastPageKeepsScreen(t *testing.T) {
	c := mocks.NewCatalog(mocks.Products("Jacket", 3)...)
	o := newOrchestrator(t, c)
	st := session.NewState("s", time.Now())
	ctx := context.Background()

	_, err := o.Search(ctx, st, search.Request{Keywords: "jackets"})
	require.NoError(t, err)
	st.Focus(&st.RecentProducts[1])

	res, err := o.Search(ctx, st, search.Continue(st, "show me more", 2))
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Empty(t, res.Products)
	assert.False(t, res.HasMore)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, "That's all the products I found for your search.", res.Reply)

	assert.Equal(t, 1, st.CurrentPage)
	assert.Equal(t, []string{"1", "2", "3"}, ids(st.RecentProducts))
	p, ok := st.Numbered(2)
	require.True(t, ok)
	assert.Equal(t, "2", p.ID)
	require.NotNil(t, st.ContextProduct)
	assert.Equal(t, "2", st.ContextProduct.ID)
}

func TestReply_StatesActiveFilters(t *testing.T) {
	under := search.Filters{PriceMax: floatPtr(30)}
	shirt := []catalog.Product{{ID: "1", Title: "Red Shirt", Price: 25}}
	scarf := []catalog.Product{{ID: "9", Title: "Scarf", Price: 12}}

	tests := []struct {
		name   string
		result search.Result
		want   string
	}{
		{
			name:   "single requested",
			result: search.Result{Products: shirt, Total: 3, Page: 1, Requested: 1},
			want:   "Here's the product (under $30.00) that matches your search: **Red Shirt**",
		},
		{
			name:   "single match",
			result: search.Result{Products: shirt, Total: 1, Page: 1},
			want:   "I found 1 product (under $30.00) that matches your search: **Red Shirt**",
		},
		{
			name:   "nothing at all",
			result: search.Result{Page: 1},
			want:   "I couldn't find any products (under $30.00) matching your search. Could you try different keywords or be more specific?",
		},
		{
			name:   "suggestions only",
			result: search.Result{Suggestions: scarf, Page: 1},
			want:   "I couldn't find exact matches for your search (under $30.00). Here are some related suggestions:",
		},
		{
			name:   "suggestions for a single request",
			result: search.Result{Suggestions: scarf, Page: 1, Requested: 1},
			want:   "I couldn't find exactly what you're looking for (under $30.00). Here are some related suggestions:",
		},
		{
			name:   "past the last page",
			result: search.Result{Total: 4, Page: 1, Exhausted: true},
			want:   "That's all the products I found for your search (under $30.00).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result
			r.Filters = under
			assert.Equal(t, tt.want, search.Reply(&r))
		})
	}
}

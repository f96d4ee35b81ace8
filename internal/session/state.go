// Package session holds per-conversation state between turns.
package session

import (
	"encoding/json"
	"time"

	"github.com/Veraticus/shopassist/internal/catalog"
)

// MaxHistory is the number of turns kept per session.
const MaxHistory = 10

// Role identifies who produced a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchParams are the shopper constraints a cached result set was built with.
type SearchParams struct {
	PriceMax   *float64 `json:"price_max,omitempty"`
	Brand      string   `json:"brand,omitempty"`
	MaxResults *int     `json:"max_results,omitempty"`
}

// State is everything remembered about one session.
//
// RecentProducts is the page currently on screen and NumberedProducts maps
// its 1-based display positions back to the same products. Both are only
// ever rebuilt together through SetPage.
type State struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`

	History []Turn `json:"history"`

	ContextProduct  *catalog.Product `json:"context_product,omitempty"`
	SelectedProduct *catalog.Product `json:"selected_product,omitempty"`

	RecentProducts   []catalog.Product       `json:"recent_products,omitempty"`
	NumberedProducts map[int]catalog.Product `json:"numbered_products,omitempty"`
	CachedQuery      string                  `json:"cached_query,omitempty"`
	CachedResults    []catalog.Product       `json:"cached_results,omitempty"`
	CachedParams     SearchParams            `json:"cached_params"`
	// CurrentPage is the 1-based page of CachedResults on screen.
	CurrentPage int `json:"current_page,omitempty"`

	PendingOrderEmail  string `json:"pending_order_email,omitempty"`
	PendingOrderNumber string `json:"pending_order_number,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewState returns an empty state for id.
func NewState(id string, now time.Time) *State {
	return &State{
		ID:               id,
		NumberedProducts: make(map[int]catalog.Product),
		CreatedAt:        now,
		LastActivity:     now,
	}
}

// AppendTurn records a turn, dropping the oldest beyond MaxHistory.
func (s *State) AppendTurn(role Role, text string, at time.Time) {
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: at})
	if over := len(s.History) - MaxHistory; over > 0 {
		s.History = append([]Turn(nil), s.History[over:]...)
	}
	s.LastActivity = at
}

// RecentTurns returns up to n of the most recent turns.
func (s *State) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if n > len(s.History) {
		n = len(s.History)
	}
	return s.History[len(s.History)-n:]
}

// SetPage replaces the products on screen and their display numbering.
func (s *State) SetPage(page []catalog.Product) {
	s.RecentProducts = append([]catalog.Product(nil), page...)
	s.NumberedProducts = make(map[int]catalog.Product, len(page))
	for i, p := range s.RecentProducts {
		s.NumberedProducts[i+1] = p
	}
}

// Numbered returns the product shown at 1-based position n.
func (s *State) Numbered(n int) (*catalog.Product, bool) {
	p, ok := s.NumberedProducts[n]
	if !ok {
		return nil, false
	}
	return &p, true
}

// Select makes p the explicitly chosen product and the product in focus.
func (s *State) Select(p *catalog.Product) {
	if p == nil {
		return
	}
	cp := *p
	s.SelectedProduct = &cp
	ctx := *p
	s.ContextProduct = &ctx
}

// Focus sets the product in focus without changing the explicit selection.
func (s *State) Focus(p *catalog.Product) {
	if p == nil {
		s.ContextProduct = nil
		return
	}
	cp := *p
	s.ContextProduct = &cp
}

// CacheResults stores the full filtered result set of query along with the
// constraints that produced it.
func (s *State) CacheResults(query string, results []catalog.Product, params SearchParams) {
	s.CachedQuery = query
	s.CachedResults = append([]catalog.Product(nil), results...)
	s.CachedParams = params
}

// ClearOrderSlots forgets any partially collected order lookup.
func (s *State) ClearOrderSlots() {
	s.PendingOrderEmail = ""
	s.PendingOrderNumber = ""
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		cp := *s
		return &cp
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *s
		return &cp
	}
	if out.NumberedProducts == nil {
		out.NumberedProducts = make(map[int]catalog.Product)
	}
	return &out
}

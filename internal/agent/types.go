// Package agent runs one conversational turn: it resolves follow-up
// questions against the session's products, classifies everything else,
// and dispatches to product search, order lookup or small talk.
package agent

import (
	"errors"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/search"
)

// DefaultSessionID is used for requests that carry no session id.
const DefaultSessionID = "default"

// IntentError marks the reply to a failed turn.
const IntentError = "error"

// ErrEmptyMessage is returned for a turn without text.
var ErrEmptyMessage = errors.New("message is required")

// Request is one inbound chat message.
type Request struct {
	Message   string
	SessionID string
	UserID    string
	// Email is used for order lookups when the shopper never typed one.
	Email string
	// SelectedProductID is a product the shopper picked in the UI.
	SelectedProductID string
	MaxResults        *int
	Filters           search.Filters
	Page              int
}

// Response is the reply to one turn.
type Response struct {
	Reply                 string            `json:"response"`
	Intent                string            `json:"intent"`
	Confidence            float64           `json:"confidence"`
	ExactMatches          []catalog.Product `json:"exact_matches"`
	Suggestions           []catalog.Product `json:"suggestions"`
	Orders                []catalog.Order   `json:"orders,omitempty"`
	ContextProduct        *catalog.Product  `json:"context_product,omitempty"`
	ShowExactSlider       bool              `json:"show_exact_slider"`
	ShowSuggestionsSlider bool              `json:"show_suggestions_slider"`
	SuggestedQuestions    []string          `json:"suggested_questions"`
	TotalExactMatches     int               `json:"total_exact_matches"`
	TotalSuggestions      int               `json:"total_suggestions"`
	CurrentPage           int               `json:"current_page"`
	HasMoreExact          bool              `json:"has_more_exact"`
	HasMoreSuggestions    bool              `json:"has_more_suggestions"`
	AppliedFilters        search.Filters    `json:"applied_filters"`
	SearchMetadata        *SearchMetadata   `json:"search_metadata,omitempty"`

	// SessionID echoes the session the turn ran in.
	SessionID string `json:"session_id"`
}

// SearchMetadata describes how a product search ran.
type SearchMetadata struct {
	Query          string `json:"original_query"`
	FromCache      bool   `json:"from_cache"`
	FiltersApplied bool   `json:"filters_applied"`
	UserMaxResults int    `json:"user_max_results,omitempty"`
	SimilarTo      int    `json:"similar_to,omitempty"`
}

// errorResponse is the reply to a failed turn: a message and zero-valued
// metadata.
func errorResponse(sessionID, reply string) *Response {
	return &Response{
		Reply:              reply,
		Intent:             IntentError,
		ExactMatches:       []catalog.Product{},
		Suggestions:        []catalog.Product{},
		SuggestedQuestions: []string{},
		CurrentPage:        1,
		SessionID:          sessionID,
	}
}

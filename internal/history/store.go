// Package history persists conversation records: users identified by email,
// their chat sessions, and every user and assistant message with the
// products, orders and suggestions shown alongside it.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/Veraticus/shopassist/internal/catalog"
)

var (
	// ErrEmailRequired is returned by Identify when no email is given.
	ErrEmailRequired = errors.New("email is required")
	// ErrSessionRequired is returned when a session id is empty.
	ErrSessionRequired = errors.New("session id is required")
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks customer messages.
	RoleUser Role = "user"
	// RoleAssistant marks assistant replies.
	RoleAssistant Role = "assistant"
)

// Extra is the structured context stored with a message.
type Extra struct {
	Intent             string                    `json:"intent,omitempty"`
	Confidence         float64                   `json:"confidence,omitempty"`
	Products           []catalog.ProductSnapshot `json:"products,omitempty"`
	Suggestions        []catalog.ProductSnapshot `json:"suggestions,omitempty"`
	Orders             []catalog.OrderSnapshot   `json:"orders,omitempty"`
	SuggestedQuestions []string                  `json:"suggested_questions,omitempty"`
	Page               int                       `json:"page,omitempty"`
	TotalResults       int                       `json:"total_results,omitempty"`
	HasMore            bool                      `json:"has_more,omitempty"`
}

// Message is one stored message.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Extra     *Extra    `json:"extra,omitempty"`
}

// Identity is the outcome of Identify.
type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	// Reused is true when an existing session was returned.
	Reused bool `json:"reused"`
}

// Store persists conversation records.
type Store interface {
	// Identify finds or creates the user for email and returns their most
	// recent session, or a fresh one when newSession is set or none exists.
	Identify(ctx context.Context, email string, newSession bool, metadata map[string]string) (*Identity, error)

	// Record appends messages to a session, creating the session if needed.
	// userID may be empty for anonymous sessions.
	Record(ctx context.Context, sessionID, userID string, msgs ...Message) error

	// History returns a session's messages oldest first.
	History(ctx context.Context, sessionID string) ([]Message, error)

	Close() error
}

// Package order collects the order number and email needed to look up an
// order across turns, then fetches it.
package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/intent"
	"github.com/Veraticus/shopassist/internal/session"
)

// State is the lookup state after a turn.
type State string

// Lookup states.
const (
	StateNeedBoth      State = "need_both"
	StateNeedNumber    State = "need_number"
	StateNeedEmail     State = "need_email"
	StateInvalidNumber State = "invalid_number"
	StateNotFound      State = "not_found"
	StateLookupFailed  State = "lookup_failed"
	StateResolved      State = "resolved"
)

// Prompts for each unresolved state.
const (
	PromptNeedBoth      = "I can help you check your order. Please provide your order number and the email address used at checkout."
	PromptNeedNumber    = "Thanks! What's your order number? You can find it in your order confirmation email."
	PromptNeedEmail     = "Got it, order #%s. Please provide the email address used for this order so I can verify it's yours."
	PromptInvalidNumber = "Please provide a valid numeric order number (for example, 1234)."
	PromptNotFound      = "Sorry, I couldn't find any order matching that number and email. Please verify and try again."
	PromptLookupFailed  = "I'm having trouble looking up your order right now. Please try again in a moment."
)

// Input is what one turn contributes to the lookup.
type Input struct {
	// Slots are newly extracted values; they overwrite saved ones.
	Slots intent.Slots
	// Message is the raw text, used for a bare order number reply.
	Message string
	// FallbackEmail is used only when no email was extracted or saved.
	FallbackEmail string
}

// Result is the outcome of one turn.
type Result struct {
	State State
	// Reply is empty for StateResolved; the caller renders the order.
	Reply       string
	Order       *catalog.Order
	OrderNumber string
	Email       string
}

// Resolver drives the lookup.
type Resolver struct {
	store  catalog.Store
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver backed by store.
func NewResolver(store catalog.Store, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("order resolver: store is required")
	}
	r := &Resolver{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("order")
	return r, nil
}

// MergeSlots combines classifier output with the regex extractor. Classifier
// values win when they are well formed.
func MergeSlots(info intent.Info, message string) intent.Slots {
	found := intent.ExtractSlots(message)

	var s intent.Slots
	if n := normalizeNumber(info.OrderNumber); n != "" {
		s.OrderNumber = n
	} else {
		s.OrderNumber = found.OrderNumber
	}
	if e := intent.ExtractSlots(info.CustomerEmail).Email; e != "" {
		s.Email = e
	} else {
		s.Email = found.Email
	}
	return s
}

// AwaitingNumber reports whether the previous turn asked for the number.
func AwaitingNumber(st *session.State) bool {
	return st != nil && st.PendingOrderEmail != "" && st.PendingOrderNumber == ""
}

// Pending reports whether a lookup is in progress.
func Pending(st *session.State) bool {
	return st != nil && (st.PendingOrderEmail != "" || st.PendingOrderNumber != "")
}

// Resolve merges in over the slots saved in st and advances the lookup.
// Only context errors are returned; store failures become StateLookupFailed.
func (r *Resolver) Resolve(ctx context.Context, st *session.State, in Input) (*Result, error) {
	number := in.Slots.OrderNumber
	if number == "" && AwaitingNumber(st) {
		if tok, ok := intent.BareToken(in.Message); ok {
			number = tok
		}
	}
	if number == "" {
		number = st.PendingOrderNumber
	}
	email := in.Slots.Email
	if email == "" {
		email = st.PendingOrderEmail
	}
	if email == "" {
		email = intent.ExtractSlots(in.FallbackEmail).Email
	}

	st.PendingOrderNumber, st.PendingOrderEmail = number, email
	res := &Result{OrderNumber: number, Email: email}

	switch {
	case number == "" && email == "":
		res.State, res.Reply = StateNeedBoth, PromptNeedBoth
		return res, nil
	case number == "":
		res.State, res.Reply = StateNeedNumber, PromptNeedNumber
		return res, nil
	case email == "":
		res.State, res.Reply = StateNeedEmail, fmt.Sprintf(PromptNeedEmail, number)
		return res, nil
	}

	n, err := strconv.Atoi(number)
	if err != nil || n <= 0 {
		res.State, res.Reply = StateInvalidNumber, PromptInvalidNumber
		return res, nil
	}

	o, err := r.store.FetchOrder(ctx, n, email)
	switch {
	case errors.Is(err, catalog.ErrNotFound), err == nil && o == nil:
		r.logger.Info("order not found", zap.Int("order_number", n))
		st.ClearOrderSlots()
		res.State, res.Reply = StateNotFound, PromptNotFound
		return res, nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn("order lookup failed", zap.Int("order_number", n), zap.Error(err))
		res.State, res.Reply = StateLookupFailed, PromptLookupFailed
		return res, nil
	}

	st.ClearOrderSlots()
	res.State = StateResolved
	res.Order = o
	return res, nil
}

func normalizeNumber(raw string) string {
	n := strings.TrimSpace(raw)
	n = strings.TrimPrefix(n, "#")
	n = strings.TrimSpace(n)
	if strings.EqualFold(n, "null") || strings.EqualFold(n, "none") {
		return ""
	}
	return strings.ToUpper(n)
}

package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/compose"
	"github.com/Veraticus/shopassist/internal/intent"
	"github.com/Veraticus/shopassist/internal/order"
	"github.com/Veraticus/shopassist/internal/resolver"
	"github.com/Veraticus/shopassist/internal/search"
	"github.com/Veraticus/shopassist/internal/session"
)

// resolvedConfidence is reported for turns routed without the classifier.
const resolvedConfidence = 1.0

var morePattern = regexp.MustCompile(`(?i)^\s*(?:(?:show|see|load|give)\s+(?:me\s+)?)?(?:some\s+)?more(?:\s+(?:results|products|items|options|of\s+(?:them|those)))?(?:\s+please)?\s*[.!?]*\s*$|^\s*next\s+page\s*[.!?]*\s*$`)

// followupTypes maps the classifier's question_type onto answerable kinds.
var followupTypes = map[string]resolver.QuestionType{
	"images":       resolver.TypeImages,
	"color":        resolver.TypeColor,
	"size":         resolver.TypeSize,
	"material":     resolver.TypeMaterial,
	"fabric":       resolver.TypeMaterial,
	"discount":     resolver.TypeDiscount,
	"price":        resolver.TypePrice,
	"availability": resolver.TypeAvailability,
	"options":      resolver.TypeOptions,
}

// route picks the handler for a turn. Order slots win while a lookup is
// pending, then continuation of the last search, then references to
// products already shown, then the classifier.
func (h *Handler) route(ctx context.Context, st *session.State, req Request, prefs intent.Preferences) (*Response, error) {
	if order.Pending(st) {
		slots := intent.ExtractSlots(req.Message)
		_, bare := intent.BareToken(req.Message)
		if !slots.Empty() || (bare && order.AwaitingNumber(st)) {
			pending := intent.Result{Intent: intent.OrderInquiry, Confidence: resolvedConfidence}
			return h.orderTurn(ctx, st, req, pending, slots)
		}
	}

	if st.CachedQuery != "" && morePattern.MatchString(req.Message) {
		return h.searchTurn(ctx, st, search.Continue(st, req.Message, st.CurrentPage+1), resolvedConfidence)
	}

	res := h.resolver.Resolve(req.Message, st, prefs)
	switch res.Outcome {
	case resolver.OutcomeFound:
		return h.productTurn(ctx, st, req.Message, res.Target, res.QuestionType, resolvedConfidence), nil
	case resolver.OutcomeNeedsClarification:
		resp := newResponse(string(intent.ProductSearch), resolvedConfidence)
		resp.Reply = compose.Clarify(res, len(st.RecentProducts))
		return resp, nil
	}

	cls := h.classifier.Classify(ctx, intent.Input{
		Message:        req.Message,
		History:        priorTurns(st),
		ContextProduct: st.ContextProduct,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cls.Intent {
	case intent.OrderInquiry:
		return h.orderTurn(ctx, st, req, cls, order.MergeSlots(cls.Info, req.Message))
	case intent.GeneralChat, intent.Help:
		return h.generalTurn(ctx, req.Message, cls), nil
	}

	if qtype, ok := followupTypes[strings.ToLower(cls.Info.QuestionType)]; ok && cls.Info.IsFollowup && st.ContextProduct != nil {
		return h.productTurn(ctx, st, req.Message, st.ContextProduct, qtype, cls.Confidence), nil
	}

	filters := search.Filters{PriceMax: prefs.PriceMax, Brand: prefs.Brand}
	if filters.PriceMax == nil {
		filters.PriceMax = cls.Info.PriceMax
	}
	return h.searchTurn(ctx, st, search.Request{
		Message:    req.Message,
		Keywords:   cls.Info.Query(),
		MaxResults: prefs.MaxResults,
		Filters:    filters,
		SimilarTo:  prefs.SimilarTo,
		Page:       req.Page,
	}, cls.Confidence)
}

// priorTurns is the history before the message being classified.
func priorTurns(st *session.State) []session.Turn {
	if len(st.History) == 0 {
		return nil
	}
	return st.History[:len(st.History)-1]
}

func (h *Handler) productTurn(ctx context.Context, st *session.State, message string, target *catalog.Product, qtype resolver.QuestionType, confidence float64) *Response {
	st.Focus(target)

	resp := newResponse(string(intent.ProductSearch), confidence)
	resp.Reply = h.composer.ProductAnswer(ctx, target, message, qtype)
	resp.SuggestedQuestions = compose.FollowUps(qtype)
	if st.CurrentPage > 0 {
		resp.CurrentPage = st.CurrentPage
	}
	return resp
}

func (h *Handler) searchTurn(ctx context.Context, st *session.State, req search.Request, confidence float64) (*Response, error) {
	r, err := h.search.Search(ctx, st, req)
	if err != nil {
		return nil, err
	}
	h.metrics.ObserveSearch(r.Total)
	return fromSearch(r, confidence), nil
}

func (h *Handler) orderTurn(ctx context.Context, st *session.State, req Request, cls intent.Result, slots intent.Slots) (*Response, error) {
	out, err := h.orders.Resolve(ctx, st, order.Input{
		Slots:         slots,
		Message:       req.Message,
		FallbackEmail: req.Email,
	})
	if err != nil {
		return nil, err
	}

	resp := newResponse(string(intent.OrderInquiry), cls.Confidence)
	if out.State != order.StateResolved || out.Order == nil {
		resp.Reply = out.Reply
		return resp, nil
	}
	resp.Reply = h.composer.OrderAnswer(ctx, out.Order, req.Message, cls.Info.AddressType)
	resp.Orders = []catalog.Order{*out.Order}
	resp.SuggestedQuestions = append([]string(nil), compose.OrderFollowUps...)
	return resp, nil
}

func (h *Handler) generalTurn(ctx context.Context, message string, cls intent.Result) *Response {
	resp := newResponse(string(cls.Intent), cls.Confidence)
	resp.Reply = h.composer.GeneralAnswer(ctx, message)
	resp.SuggestedQuestions = append([]string(nil), compose.GeneralFollowUps...)
	return resp
}

func newResponse(intentName string, confidence float64) *Response {
	return &Response{
		Intent:             intentName,
		Confidence:         confidence,
		ExactMatches:       []catalog.Product{},
		Suggestions:        []catalog.Product{},
		SuggestedQuestions: []string{},
		CurrentPage:        1,
	}
}

func fromSearch(r *search.Result, confidence float64) *Response {
	resp := newResponse(string(intent.ProductSearch), confidence)
	resp.Reply = r.Reply
	if r.Products != nil {
		resp.ExactMatches = r.Products
	}
	if r.Suggestions != nil {
		resp.Suggestions = r.Suggestions
	}
	if r.FollowUps != nil {
		resp.SuggestedQuestions = r.FollowUps
	}
	resp.ShowExactSlider = len(resp.ExactMatches) > 0
	resp.ShowSuggestionsSlider = len(resp.Suggestions) > 0
	resp.TotalExactMatches = r.Total
	resp.TotalSuggestions = len(resp.Suggestions)
	if r.Page > 0 {
		resp.CurrentPage = r.Page
	}
	resp.HasMoreExact = r.HasMore
	resp.AppliedFilters = r.Filters
	resp.SearchMetadata = &SearchMetadata{
		Query:          r.Query,
		FromCache:      r.FromCache,
		FiltersApplied: r.Filters.Active(),
		UserMaxResults: r.Requested,
		SimilarTo:      r.SimilarTo,
	}
	return resp
}

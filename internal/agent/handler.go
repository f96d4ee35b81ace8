package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/compose"
	"github.com/Veraticus/shopassist/internal/history"
	"github.com/Veraticus/shopassist/internal/intent"
	"github.com/Veraticus/shopassist/internal/llm"
	"github.com/Veraticus/shopassist/internal/metrics"
	"github.com/Veraticus/shopassist/internal/order"
	"github.com/Veraticus/shopassist/internal/queue"
	"github.com/Veraticus/shopassist/internal/resolver"
	"github.com/Veraticus/shopassist/internal/search"
	"github.com/Veraticus/shopassist/internal/session"
)

// NoPreviousSearchReply answers a request for more results when nothing was
// searched in the session.
const NoPreviousSearchReply = "I don't have a previous search to continue. What are you looking for?"

// Handler processes chat turns.
type Handler struct {
	sessions   session.Store
	catalog    catalog.Store
	classifier intent.Classifier
	resolver   *resolver.Resolver
	search     *search.Orchestrator
	orders     *order.Resolver
	composer   *compose.Composer
	history    history.Store
	queue      *queue.Manager
	metrics    *metrics.Metrics
	recovery   *ErrorRecovery

	persona     string
	turnTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler) error

// WithClassifier replaces the model-backed intent classifier.
func WithClassifier(c intent.Classifier) Option {
	return func(h *Handler) error {
		if c == nil {
			return fmt.Errorf("invalid option: classifier cannot be nil")
		}
		h.classifier = c
		return nil
	}
}

// WithResolver replaces the default reference resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(h *Handler) error {
		if r == nil {
			return fmt.Errorf("invalid option: resolver cannot be nil")
		}
		h.resolver = r
		return nil
	}
}

// WithHistory persists every turn to store.
func WithHistory(store history.Store) Option {
	return func(h *Handler) error {
		h.history = store
		return nil
	}
}

// WithQueue serializes turns per session through m. Without a queue, turns
// of one session must not be submitted concurrently.
func WithQueue(m *queue.Manager) Option {
	return func(h *Handler) error {
		h.queue = m
		return nil
	}
}

// WithMetrics records turn metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) error {
		h.metrics = m
		return nil
	}
}

// WithPersona sets the store persona prepended to model prompts.
func WithPersona(prompt string) Option {
	return func(h *Handler) error {
		h.persona = prompt
		return nil
	}
}

// WithTurnTimeout bounds each turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(h *Handler) error {
		if d < 0 {
			return fmt.Errorf("invalid option: negative turn timeout %v", d)
		}
		h.turnTimeout = d
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) error {
		if now == nil {
			return fmt.Errorf("invalid option: clock cannot be nil")
		}
		h.now = now
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) error {
		if logger != nil {
			h.logger = logger
		}
		return nil
	}
}

// NewHandler wires a handler. sessions, store, searcher and model are
// required.
func NewHandler(sessions session.Store, store catalog.Store, searcher catalog.Searcher, model llm.LLM, opts ...Option) (*Handler, error) {
	switch {
	case sessions == nil:
		return nil, fmt.Errorf("handler creation failed: session store is required")
	case store == nil:
		return nil, fmt.Errorf("handler creation failed: catalog store is required")
	case searcher == nil:
		return nil, fmt.Errorf("handler creation failed: searcher is required")
	case model == nil:
		return nil, fmt.Errorf("handler creation failed: llm is required")
	}

	h := &Handler{
		sessions: sessions,
		catalog:  store,
		recovery: NewErrorRecovery(),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	h.logger = h.logger.Named("agent")

	var err error
	if h.classifier == nil {
		if h.classifier, err = intent.NewLLMClassifier(model, h.logger); err != nil {
			return nil, err
		}
	}
	if h.resolver == nil {
		h.resolver = resolver.New()
	}
	if h.search, err = search.New(searcher, store, search.WithLogger(h.logger)); err != nil {
		return nil, err
	}
	if h.orders, err = order.NewResolver(store, order.WithLogger(h.logger)); err != nil {
		return nil, err
	}
	if h.composer, err = compose.New(model, compose.WithLogger(h.logger), compose.WithPersona(h.persona)); err != nil {
		return nil, err
	}
	return h, nil
}

// Handle runs one turn. The only errors returned are ErrEmptyMessage and
// the caller's context error; every other failure becomes a reply.
func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}
	return h.run(ctx, req.SessionID, func(ctx context.Context) *Response {
		return h.turn(ctx, req)
	})
}

// MoreProducts shows another page of the session's last search without a
// new chat message. A page below 1 means the page after the one on screen.
func (h *Handler) MoreProducts(ctx context.Context, sessionID string, page int) (*Response, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.run(ctx, sessionID, func(ctx context.Context) *Response {
		return h.more(ctx, sessionID, page)
	})
}

func (h *Handler) run(ctx context.Context, sessionID string, fn func(ctx context.Context) *Response) (*Response, error) {
	if h.queue == nil {
		return h.safely(ctx, sessionID, fn), nil
	}

	start := h.now()
	var resp *Response
	err := h.queue.Do(ctx, sessionID, func(ctx context.Context) error {
		resp = h.safely(ctx, sessionID, fn)
		return nil
	})
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	kind := h.recovery.ClassifyError(err)
	h.logger.Warn("turn not processed",
		zap.String("session_id", sessionID),
		zap.String("reason", kind.String()),
		zap.Error(err))
	status := metrics.StatusError
	if kind == ErrorTypeRateLimit {
		status = metrics.StatusRateLimited
	}
	h.metrics.ObserveTurn(IntentError, status, h.now().Sub(start))
	return errorResponse(sessionID, h.recovery.UserMessage(err)), nil
}

// safely runs fn under the turn timeout and converts a panic into the
// catch-all reply.
func (h *Handler) safely(ctx context.Context, sessionID string, fn func(ctx context.Context) *Response) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("turn panicked",
				zap.String("session_id", sessionID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			h.metrics.IncPanics()
			h.metrics.ObserveTurn(IntentError, metrics.StatusError, 0)
			resp = errorResponse(sessionID, compose.ErrorReply)
		}
	}()

	if h.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.turnTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (h *Handler) turn(ctx context.Context, req Request) *Response {
	start := h.now()

	st, err := h.sessions.LoadOrCreate(ctx, req.SessionID)
	if err != nil {
		return h.fail(req.SessionID, "load session", err, start)
	}
	if req.UserID != "" {
		st.UserID = req.UserID
	}
	if req.SelectedProductID != "" {
		h.applySelection(ctx, st, req.SelectedProductID)
	}
	st.AppendTurn(session.RoleUser, req.Message, start)

	prefs := mergePreferences(intent.ParsePreferences(req.Message), req)
	resp, err := h.route(ctx, st, req, prefs)
	if err != nil {
		return h.fail(req.SessionID, "route turn", err, start)
	}
	resp.SessionID = st.ID
	if st.ContextProduct != nil {
		cp := *st.ContextProduct
		resp.ContextProduct = &cp
	}

	st.AppendTurn(session.RoleAssistant, resp.Reply, h.now())
	if err := h.sessions.Save(ctx, st); err != nil {
		h.logger.Warn("failed to save session", zap.String("session_id", st.ID), zap.Error(err))
	}
	h.record(ctx, st, req, resp, start)

	h.metrics.ObserveTurn(resp.Intent, metrics.StatusOK, h.now().Sub(start))
	h.logger.Debug("turn completed",
		zap.String("session_id", st.ID),
		zap.String("intent", resp.Intent),
		zap.Float64("confidence", resp.Confidence),
		zap.Int("exact_matches", len(resp.ExactMatches)),
		zap.Duration("elapsed", h.now().Sub(start)))
	return resp
}

func (h *Handler) more(ctx context.Context, sessionID string, page int) *Response {
	start := h.now()

	st, err := h.sessions.Load(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return h.fail(sessionID, "load session", err, start)
	}
	if st == nil || st.CachedQuery == "" {
		resp := newResponse(string(intent.ProductSearch), resolvedConfidence)
		resp.Reply = NoPreviousSearchReply
		resp.SessionID = sessionID
		return resp
	}

	if page < 1 {
		page = st.CurrentPage + 1
	}
	r, err := h.search.Search(ctx, st, search.Continue(st, "", page))
	if err != nil {
		return h.fail(sessionID, "search", err, start)
	}
	resp := fromSearch(r, resolvedConfidence)
	resp.SessionID = sessionID
	if st.ContextProduct != nil {
		cp := *st.ContextProduct
		resp.ContextProduct = &cp
	}

	if err := h.sessions.Save(ctx, st); err != nil {
		h.logger.Warn("failed to save session", zap.String("session_id", st.ID), zap.Error(err))
	}
	h.metrics.ObserveTurn(resp.Intent, metrics.StatusOK, h.now().Sub(start))
	return resp
}

func (h *Handler) fail(sessionID, stage string, err error, start time.Time) *Response {
	h.logger.Error("turn failed",
		zap.String("session_id", sessionID),
		zap.String("stage", stage),
		zap.Error(err))
	h.metrics.ObserveTurn(IntentError, metrics.StatusError, h.now().Sub(start))
	return errorResponse(sessionID, h.recovery.UserMessage(err))
}

func (h *Handler) applySelection(ctx context.Context, st *session.State, id string) {
	p, err := h.catalog.Product(ctx, id)
	if err != nil {
		h.logger.Warn("selected product unavailable",
			zap.String("session_id", st.ID),
			zap.String("product_id", id),
			zap.Error(err))
		return
	}
	st.Select(p)
}

// mergePreferences fills what the message did not say from the request.
func mergePreferences(prefs intent.Preferences, req Request) intent.Preferences {
	if prefs.MaxResults == nil && req.MaxResults != nil && *req.MaxResults > 0 {
		n := *req.MaxResults
		prefs.MaxResults = &n
	}
	if prefs.PriceMax == nil && req.Filters.PriceMax != nil {
		v := *req.Filters.PriceMax
		prefs.PriceMax = &v
	}
	if prefs.Brand == "" {
		prefs.Brand = strings.TrimSpace(req.Filters.Brand)
	}
	return prefs
}

func (h *Handler) record(ctx context.Context, st *session.State, req Request, resp *Response, start time.Time) {
	if h.history == nil {
		return
	}

	orders := make([]catalog.OrderSnapshot, 0, len(resp.Orders))
	for i := range resp.Orders {
		orders = append(orders, catalog.TrimOrder(&resp.Orders[i]))
	}
	extra := &history.Extra{
		Intent:             resp.Intent,
		Confidence:         resp.Confidence,
		Products:           catalog.TrimProducts(resp.ExactMatches),
		Suggestions:        catalog.TrimProducts(resp.Suggestions),
		Orders:             orders,
		SuggestedQuestions: resp.SuggestedQuestions,
		Page:               resp.CurrentPage,
		TotalResults:       resp.TotalExactMatches,
		HasMore:            resp.HasMoreExact,
	}

	err := h.history.Record(ctx, st.ID, st.UserID,
		history.Message{Role: history.RoleUser, Content: req.Message, Timestamp: start},
		history.Message{Role: history.RoleAssistant, Content: resp.Reply, Timestamp: h.now(), Extra: extra},
	)
	if err != nil {
		h.logger.Warn("failed to record conversation", zap.String("session_id", st.ID), zap.Error(err))
	}
}

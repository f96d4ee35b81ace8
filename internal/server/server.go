// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/agent"
	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/history"
	"github.com/Veraticus/shopassist/internal/metrics"
	"github.com/Veraticus/shopassist/internal/search"
	"github.com/Veraticus/shopassist/internal/session"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the assistant.
type Server struct {
	agent    *agent.Handler
	sessions session.Store
	history  history.Store
	catalog  catalog.Store
	searcher catalog.Searcher
	metrics  *metrics.Metrics
	mux      *http.ServeMux
	logger   *zap.Logger

	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithHistory serves identify and history endpoints from store. Without it
// those endpoints answer 503.
func WithHistory(store history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithMetrics serves /metrics from m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTimeouts sets the HTTP read and write timeouts and the graceful
// shutdown budget. Zero values keep the defaults.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server for handler and sessions.
func New(handler *agent.Handler, sessions session.Store, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("server: agent handler is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("server: session store is required")
	}
	s := &Server{
		agent:           handler,
		sessions:        sessions,
		mux:             http.NewServeMux(),
		logger:          zap.NewNop(),
		readTimeout:     15 * time.Second,
		writeTimeout:    60 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/v1/chat/products/more", s.handleMoreProducts)
	s.mux.HandleFunc("POST /api/v1/clear-context", s.handleClearContext)
	s.mux.HandleFunc("GET /api/v1/context/{session_id}", s.handleContext)
	s.mux.HandleFunc("POST /api/v1/auth/identify", s.handleIdentify)
	s.mux.HandleFunc("GET /api/v1/history/{session_id}", s.handleHistory)

	s.mux.HandleFunc("GET /api/v1/products/search", s.handleProductSearch)
	s.mux.HandleFunc("GET /api/v1/products/{product_id}", s.handleProduct)
	s.mux.HandleFunc("GET /api/v1/orders/{order_number}", s.handleOrder)
}

// Handler returns the root handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return CORS(s.logRequests(s.mux))
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	// The serving context is done; give in-flight requests a fresh budget.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message           string         `json:"message"`
	UserID            string         `json:"user_id,omitempty"`
	Email             string         `json:"email,omitempty"`
	SessionID         string         `json:"session_id,omitempty"`
	SelectedProductID string         `json:"selected_product_id,omitempty"`
	MaxResults        *int           `json:"max_results,omitempty"`
	Filters           search.Filters `json:"filters"`
	Page              int            `json:"page_number,omitempty"`
}

// IdentifyRequest is the body of POST /api/v1/auth/identify.
type IdentifyRequest struct {
	Email      string            `json:"email"`
	NewSession bool              `json:"new_session"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := s.agent.Handle(r.Context(), agent.Request{
		Message:           req.Message,
		SessionID:         strings.TrimSpace(req.SessionID),
		UserID:            strings.TrimSpace(req.UserID),
		Email:             strings.TrimSpace(req.Email),
		SelectedProductID: strings.TrimSpace(req.SelectedProductID),
		MaxResults:        req.MaxResults,
		Filters:           req.Filters,
		Page:              req.Page,
	})
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	case err != nil:
		// Only the caller's context ends a turn without a reply.
		s.logger.Debug("chat request abandoned", zap.Error(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMoreProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 0
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	resp, err := s.agent.MoreProducts(r.Context(), strings.TrimSpace(q.Get("session_id")), page)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearContext(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		id = agent.DefaultSessionID
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil && !errors.Is(err, session.ErrNotFound) {
		s.logger.Error("failed to clear session", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear context")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Context cleared for session " + id,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	st, err := s.sessions.Load(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrInvalidID):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		s.logger.Error("failed to load session", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "conversation history is disabled")
		return
	}
	var req IdentifyRequest
	if !decode(w, r, &req) {
		return
	}

	id, err := s.history.Identify(r.Context(), req.Email, req.NewSession, req.Metadata)
	switch {
	case errors.Is(err, history.ErrEmailRequired):
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	case err != nil:
		s.logger.Error("identify failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to identify user")
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "conversation history is disabled")
		return
	}
	id := r.PathValue("session_id")
	msgs, err := s.history.History(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load history", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   msgs,
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

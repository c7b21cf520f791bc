package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
	"github.com/JakeFAU/jobalert-crawler/internal/pipeline"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const (
	defaultRequestTimeout = 60 * time.Second
	readyTimeout          = 2 * time.Second
	maxTopicTokens        = 1000
)

// CategoryService is the pipeline surface the handlers need.
type CategoryService interface {
	Categories() []string
	ReadCategory(ctx context.Context, category string, offset, limit int) (posting.Page, error)
	RefreshCategory(ctx context.Context, category string) pipeline.Result
}

// TopicManager manages device membership in per-category push topics.
type TopicManager interface {
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (posting.PushResult, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (posting.PushResult, error)
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config controls middleware behavior. An empty APIKey disables auth.
type Config struct {
	APIKey         string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the refresh pipeline.
type Server struct {
	router   chi.Router
	service  CategoryService
	topics   TopicManager
	checks   map[string]Pinger
	logger   *zap.Logger
	category map[string]struct{}
}

// NewServer constructs a Server with middleware and routes. topics may be
// nil, which disables the push topic routes.
func NewServer(
	cfg Config,
	service CategoryService,
	topics TopicManager,
	checks map[string]Pinger,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		service:  service,
		topics:   topics,
		checks:   checks,
		logger:   logger.Named("api"),
		category: make(map[string]struct{}),
	}
	for _, c := range service.Categories() {
		s.category[c] = struct{}{}
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/livez", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Get("/categories", s.listCategories)
		r.Route("/categories/{category}", func(r chi.Router) {
			r.Get("/", s.readCategory)
			r.Post("/refresh", s.refreshCategory)
		})
		if topics != nil {
			r.Post("/push/topics/{category}/subscribe", s.subscribeTopic)
			r.Post("/push/topics/{category}/unsubscribe", s.unsubscribeTopic)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", zap.Any("failed", failed))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": s.service.Categories()})
}

func (s *Server) readCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", posting.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	page, err := s.service.ReadCategory(r.Context(), category, offset, limit)
	switch {
	case errors.Is(err, posting.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, "unknown category")
	case err != nil:
		s.logger.Error("read category failed", zap.String("category", category), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "category unavailable",
			"category": category,
			"detail":   err.Error(),
			"total":    0,
			"data":     []posting.Posting{},
		})
	default:
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) refreshCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if _, ok := s.category[category]; !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	res := s.service.RefreshCategory(r.Context(), category)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

type topicRequest struct {
	Tokens []string `json:"tokens"`
}

type topicResponse struct {
	Topic        string `json:"topic"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
}

func (s *Server) subscribeTopic(w http.ResponseWriter, r *http.Request) {
	s.manageTopic(w, r, s.topics.SubscribeToTopic)
}

func (s *Server) unsubscribeTopic(w http.ResponseWriter, r *http.Request) {
	s.manageTopic(w, r, s.topics.UnsubscribeFromTopic)
}

func (s *Server) manageTopic(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, []string, string) (posting.PushResult, error),
) {
	category := chi.URLParam(r, "category")
	if _, ok := s.category[category]; !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	var req topicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Tokens) == 0 || len(req.Tokens) > maxTopicTokens {
		writeError(w, http.StatusBadRequest, "tokens must contain between 1 and 1000 entries")
		return
	}
	res, err := op(r.Context(), req.Tokens, category)
	if err != nil {
		s.logger.Warn("topic operation failed", zap.String("category", category), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, topicResponse{
		Topic:        category,
		SuccessCount: res.SuccessCount,
		FailureCount: res.FailureCount,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err //nolint:wrapcheck // mapped to a 400 by the caller
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

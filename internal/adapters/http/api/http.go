// Package api exposes game submission and the aggregation views over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// Defaults for the router.
const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodyBytes   = 64 << 20
	corsMaxAge            = 300
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	repository.Views

	// Submit queues one game for asynchronous processing and returns its run id.
	Submit(ctx context.Context, raw model.RawGame) (string, error)

	// Stats reports service statistics.
	Stats() map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps           Dependencies
	origins        []string
	requestTimeout time.Duration
	maxBodyBytes   int64
	submitLimit    int
	submitWindow   time.Duration
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithMaxBodyBytes caps the size of a submitted game.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithSubmitRateLimit caps game submissions per client IP to n per window.
// n <= 0 disables the limit.
func WithSubmitRateLimit(n int, window time.Duration) Option {
	return func(s *Server) {
		if window > 0 {
			s.submitLimit, s.submitWindow = n, window
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server over deps.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		origins:        []string{"*"},
		requestTimeout: defaultRequestTimeout,
		maxBodyBytes:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Router builds the chi router with every route and middleware attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogContext)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         corsMaxAge,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.submitLimiter()).Post("/games", s.handleSubmitGame)
		r.Get("/games/{gameID}", s.handleGetGame)
		r.Get("/games/{gameID}/possessions", s.handleGamePossessions)
		r.Get("/possessions", s.handlePossessions)
		r.Get("/lineups/ratings", s.handleLineupRatings)
		r.Get("/players/{playerID}/onoff", s.handlePlayerOnOff)
		r.Get("/validation", s.handleValidation)
	})

	return r
}

// submitLimiter rate limits submissions by client IP, or passes through.
func (s *Server) submitLimiter() func(http.Handler) http.Handler {
	if s.submitLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(s.submitLimit, s.submitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
		}),
	)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeViewError maps a view error onto a status code.
func (s *Server) writeViewError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", Wrap(op, err))
	default:
		s.logger.Error(r.Context(), "view query failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

// filterFromQuery reads the common view parameters. Bounds are checked by
// the store; only syntax is checked here.
func filterFromQuery(r *http.Request) (repository.Filter, error) {
	q := r.URL.Query()
	f := repository.Filter{
		GameID:     q.Get("game_id"),
		TeamID:     q.Get("team_id"),
		LineupHash: q.Get("lineup_hash"),
		PlayerID:   q.Get("player_id"),
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"min_possession", &f.MinPossession},
		{"max_possession", &f.MaxPossession},
		{"limit", &f.Limit},
	}
	for _, p := range ints {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, NewKind(p.key, ErrBadRequest)
		}
		*p.dst = n
	}

	if v := q.Get("failed_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, NewKind("failed_only", ErrBadRequest)
		}
		f.FailedOnly = b
	}
	return f, nil
}

package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flowpbx/ivrflow/internal/api/middleware"
	"github.com/flowpbx/ivrflow/internal/callflow"
	"github.com/flowpbx/ivrflow/internal/config"
	"github.com/flowpbx/ivrflow/internal/voice"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// FlowEngine steps a contact's call flow and reads back its record.
type FlowEngine interface {
	Handle(ctx context.Context, event callflow.Event) (*callflow.Result, error)
	Record(ctx context.Context, ref string) (*callflow.Record, error)
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router         *chi.Mux
	cfg            *config.Config
	engine         FlowEngine
	renderer       *voice.Renderer
	jwtSecret      []byte
	metrics        http.Handler
	logger         *slog.Logger
	locks          *contactLocks
	webhookLimiter *middleware.KeyedRateLimiter
	authLimiter    *middleware.KeyedRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted. metricsHandler
// may be nil, in which case /metrics is not served.
func NewServer(cfg *config.Config, engine FlowEngine, renderer *voice.Renderer, jwtSecret []byte, metricsHandler http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		cfg:            cfg,
		engine:         engine,
		renderer:       renderer,
		jwtSecret:      jwtSecret,
		metrics:        metricsHandler,
		logger:         logger.With("subsystem", "api"),
		locks:          newContactLocks(),
		webhookLimiter: middleware.NewKeyedRateLimiter(middleware.WebhookRateLimitConfig(cfg.WebhookRate, cfg.WebhookBurst)),
		authLimiter:    middleware.NewKeyedRateLimiter(middleware.AuthRateLimitConfig()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// InFlight returns the number of flow steps currently being handled.
func (s *Server) InFlight() int64 {
	return s.locks.InFlight()
}

// Close stops the rate limiter cleanup goroutines.
func (s *Server) Close() {
	s.webhookLimiter.Stop()
	s.authLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)

	// Telephony webhooks answer with voice XML, not the JSON envelope.
	r.Route("/twiml", func(r chi.Router) {
		r.With(middleware.RateLimit(s.webhookLimiter, contactRefKey)).
			Post("/"+callflow.FlowName, s.handleOutcomeMonitoring)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.With(middleware.RateLimit(s.authLimiter, nil)).
			Post("/auth/token", s.handleIssueToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdminAuth(s.jwtSecret))
			r.Get("/contacts/{ref}/call_flow", s.handleGetCallFlow)
		})
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.logger.Debug("api routes mounted")
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

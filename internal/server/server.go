package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/alert"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/auth"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/cache"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/ratelimit"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/session"
)

// Options carries the governance components the pipeline composes. All are
// explicit instances constructed in main; the pipeline owns no globals.
type Options struct {
	Port        int
	Timeout     time.Duration
	Logger      *slog.Logger
	Validator   auth.Validator
	Gate        *auth.Gate
	PublicPaths []string
	Limiter     *ratelimit.Limiter
	Failures    *ratelimit.FailureTracker
	Cache       *cache.Cache
	Registry    *alert.Registry
	Sessions    session.Store
	SessionTTL  time.Duration
	Credentials CredentialFunc

	// Stats receives every response's duration and status so the health
	// sampler can report response-time and error-rate readings. nil
	// disables collection.
	Stats *RequestStats

	// API registers the domain routes mounted under /api/v1, already
	// behind the api-class limiter. Route groups attach their permission
	// gate first and CacheMiddleware after it, so a cache hit can never
	// bypass a permission check.
	API func(r chi.Router)
}

// Server composes the middleware chain and is the only component wired to
// the HTTP listener.
type Server struct {
	Router *chi.Mux
	Port   int

	logger *slog.Logger
	http   *http.Server
}

// New builds the request pipeline: admission -> auth -> permission ->
// cache -> handler, with request-id, metrics headers, and logging wrapped
// around the whole chain.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var requestCount atomic.Uint64
	public := NewPublicMatcher(opts.PublicPaths)

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(MetricsHeadersMiddleware(&requestCount))
	if opts.Stats != nil {
		r.Use(StatsMiddleware(opts.Stats))
	}
	r.Use(LoggingMiddleware(logger))
	r.Use(AdmissionMiddleware(opts.Limiter, ratelimit.ClassGeneral, opts.Registry))
	r.Use(AuthMiddleware(opts.Validator, public, opts.Failures, opts.Registry))
	r.Use(TimeoutMiddleware(opts.Timeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "request-governance")
	})

	r.Get("/healthz", HealthzHandler)

	// Authentication endpoints carry their own stricter admission class;
	// a client blocked here can still issue other traffic.
	r.Group(func(r chi.Router) {
		r.Use(AdmissionMiddleware(opts.Limiter, ratelimit.ClassAuth, opts.Registry))
		r.Post("/auth/login", LoginHandler(opts.Sessions, opts.Credentials, opts.SessionTTL, opts.Failures, opts.Registry))
		r.Post("/auth/logout", LogoutHandler(opts.Sessions))
	})

	if opts.API != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(AdmissionMiddleware(opts.Limiter, ratelimit.ClassAPI, opts.Registry))
			opts.API(r)
		})
	}

	r.Route("/ops", func(r chi.Router) {
		r.Use(RequirePermission(opts.Gate, "view_reports"))
		r.Get("/alerts", AlertsHandler(opts.Registry))
		r.Post("/alerts/{id}/resolve", ResolveAlertHandler(opts.Registry))
		r.Get("/cache", CacheStatsHandler(opts.Cache))
		r.Post("/cache/invalidate", InvalidateCacheHandler(opts.Cache))
		r.Get("/limits", LimitsHandler(opts.Limiter))
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

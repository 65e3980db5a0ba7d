package main

import (
	"context"
	"crypto/subtle"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/alert"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/auth"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/bookings"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/cache"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/config"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/health"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/ratelimit"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/server"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/session"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("GOVERN_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("governd", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	sessions, err := openSessionStore(cfg.Sessions)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer sessions.Close()

	var sink alert.Sink
	if cfg.Alerts.WebhookURL != "" {
		sink = alert.NewWebhookSink(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookTimeout)
	}

	thresholds := make(map[string]alert.Threshold, len(cfg.Health.Thresholds))
	for metric, t := range cfg.Health.Thresholds {
		thresholds[metric] = alert.Threshold{Warning: t.Warning, Critical: t.Critical}
	}
	registry := alert.NewRegistry(thresholds, cfg.Alerts.HistorySize, cfg.Alerts.AutoResolveAfter, sink, logger)

	limiter := ratelimit.NewLimiter(map[ratelimit.Class]ratelimit.Rule{
		ratelimit.ClassGeneral: {Max: cfg.Limits.General.Max, Window: cfg.Limits.General.Window},
		ratelimit.ClassAuth:    {Max: cfg.Limits.Auth.Max, Window: cfg.Limits.Auth.Window},
		ratelimit.ClassAPI:     {Max: cfg.Limits.API.Max, Window: cfg.Limits.API.Window},
	})
	failures := ratelimit.NewFailureTracker(cfg.Limits.Failures.Threshold, cfg.Limits.Failures.Window)

	responseCache := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL, cfg.Cache.Routes)

	validator := auth.NewCredentialValidator(
		auth.NewSessionValidator(sessions, cfg.Sessions.Renewal, cfg.Sessions.Timeout, logger),
		auth.NewTokenValidator(cfg.Auth.JWTSecret),
	)
	gate := auth.NewGate(nil)

	bookingHandler := bookings.NewHandler(responseCache)

	// Shared with the health sampler so response-time and error-rate
	// thresholds evaluate real traffic.
	requestStats := &server.RequestStats{}

	srv := server.New(server.Options{
		Port:        cfg.Server.Port,
		Timeout:     cfg.Server.Timeout,
		Logger:      logger,
		Validator:   validator,
		Gate:        gate,
		PublicPaths: cfg.Auth.PublicPaths,
		Limiter:     limiter,
		Failures:    failures,
		Cache:       responseCache,
		Registry:    registry,
		Sessions:    sessions,
		SessionTTL:  cfg.Sessions.TTL,
		Credentials: demoCredentials,
		Stats:       requestStats,
		API: func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(server.RequirePermission(gate, "view_bookings"))
				r.Use(server.CacheMiddleware(responseCache))
				r.Get("/bookings", bookingHandler.List)
			})
			r.Group(func(r chi.Router) {
				r.Use(server.RequirePermission(gate, "edit_bookings"))
				r.Post("/bookings", bookingHandler.Create)
			})
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sampler := health.NewSampler(cfg.Health.Interval, cfg.Health.DiskPath, registry, requestStats, logger)
	go sampler.Run(ctx)
	go responseCache.Run(ctx, cfg.Cache.Sweep, logger)
	go janitor(ctx, cfg.Cache.Sweep, sessions, limiter, failures, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-sigChan:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func openSessionStore(cfg config.SessionConfig) (session.Store, error) {
	if cfg.Driver == "sqlite" {
		return session.NewSQLStore(cfg.Path)
	}
	return session.NewMemoryStore(), nil
}

// janitor prunes stale limiter windows, failure entries, and expired
// sessions on the sweep interval.
func janitor(ctx context.Context, interval time.Duration, sessions session.Store, limiter *ratelimit.Limiter, failures *ratelimit.FailureTracker, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.Prune(now)
			failures.Prune(now)
			if reaped, err := sessions.Reap(ctx, now); err != nil {
				logger.Warn("session reap failed", slog.String("error", err.Error()))
			} else if reaped > 0 {
				logger.Debug("sessions reaped", slog.Int64("count", reaped))
			}
		}
	}
}

// demoCredentials is the built-in account check used until the real
// account backend is wired in. Accounts come from GOVERN_DEMO_USERS:
// "email:password:role" entries separated by commas.
func demoCredentials(_ context.Context, email, password string) (string, string, []string, bool) {
	raw := os.Getenv("GOVERN_DEMO_USERS")
	if raw == "" {
		return "", "", nil, false
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 || parts[0] != email {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(password)) != 1 {
			continue
		}
		role := parts[2]
		perms := []string{"bookings:read", "dashboard:read"}
		if role == auth.AdminRole {
			perms = append(perms, "bookings:write", "payments:read", "reports:read")
		}
		return email, role, perms, true
	}
	return "", "", nil, false
}

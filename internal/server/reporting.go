package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/alert"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/cache"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/ratelimit"
)

const snapshotRecent = 20

// HealthzHandler is the public liveness probe.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AlertsHandler returns the alert registry snapshot for the dashboards.
func AlertsHandler(registry *alert.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, registry.Snapshot(snapshotRecent))
	}
}

// ResolveAlertHandler marks an alert resolved. Idempotent on repeat.
func ResolveAlertHandler(registry *alert.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !registry.Resolve(id) {
			WriteError(w, http.StatusNotFound, "alert not found")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "resolved", "id": id})
	}
}

// CacheStatsHandler returns cache key/hit/miss counters.
func CacheStatsHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, c.Stats())
	}
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
}

// InvalidateCacheHandler clears cache entries matching a key pattern.
// Used by admin flows after mutating a resource that backs cached GETs.
func InvalidateCacheHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invalidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pattern == "" {
			WriteValidation(w, "validation failed", []FieldError{
				{Field: "pattern", Message: "pattern is required"},
			})
			return
		}

		removed, err := c.Invalidate(req.Pattern)
		if err != nil {
			WriteValidation(w, "validation failed", []FieldError{
				{Field: "pattern", Message: err.Error()},
			})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]int{"invalidated": removed})
	}
}

// LimitsHandler returns admission limiter statistics.
func LimitsHandler(limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, limiter.Stats())
	}
}

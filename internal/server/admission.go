package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/alert"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/ratelimit"
)

// Reporter receives ad-hoc governance events. Satisfied by the alert
// registry; nil disables event emission.
type Reporter interface {
	Event(alertType, message string, severity alert.Severity, metadata map[string]string)
}

// AdmissionMiddleware enforces the fixed-window limiter for one class.
// Rejections answer 429 with a Retry-After hint and raise a rate_limit
// event; the registry's idempotency keeps repeated rejections from
// flooding the alert history.
func AdmissionMiddleware(limiter *ratelimit.Limiter, class ratelimit.Class, reporter Reporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			decision := limiter.Allow(key, class, time.Now())
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if reporter != nil {
				reporter.Event("rate_limit",
					fmt.Sprintf("client %s exceeded %s rate limit", key, class),
					alert.SeverityWarning,
					map[string]string{"client": key, "class": string(class)})
			}

			AddLogField(r.Context(), "rate_limited", string(class))
			writeRateLimited(w, decision.RetryAfter)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteError(w, http.StatusTooManyRequests, "too many requests")
}

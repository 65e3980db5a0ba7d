package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/alert"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/auth"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/ratelimit"
)

// PublicMatcher matches request paths against the public allow-list.
// Patterns are exact paths, or prefixes ending in "/*".
type PublicMatcher struct {
	exact    map[string]struct{}
	prefixes []string
}

func NewPublicMatcher(patterns []string) *PublicMatcher {
	m := &PublicMatcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			m.prefixes = append(m.prefixes, prefix+"/")
			continue
		}
		m.exact[p] = struct{}{}
	}
	return m
}

func (m *PublicMatcher) Match(path string) bool {
	if _, ok := m.exact[path]; ok {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// AuthMiddleware gates every request behind credential verification.
// Public paths bypass verification with an anonymous identity. Clients
// with too many consecutive failed authentications are hard-blocked ahead
// of verification, independent of the general admission window.
func AuthMiddleware(validator auth.Validator, public *PublicMatcher, failures *ratelimit.FailureTracker, reporter Reporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.Match(r.URL.Path) {
				ctx := auth.WithIdentity(r.Context(), auth.Anonymous())
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			key := clientIP(r)
			if blocked, retry := failures.Blocked(key, time.Now()); blocked {
				AddLogField(r.Context(), "auth_blocked", key)
				writeRateLimited(w, retry)
				return
			}

			raw, err := auth.ExtractBearer(r)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			identity, err := validator.Verify(r.Context(), raw)
			if err != nil {
				if tipped := failures.Fail(key, time.Now()); tipped && reporter != nil {
					reporter.Event("auth_failures",
						fmt.Sprintf("client %s blocked after repeated failed authentications", key),
						alert.SeverityWarning,
						map[string]string{"client": key})
				}
				AddError(r.Context(), err)
				WriteError(w, http.StatusUnauthorized, "invalid or expired credential")
				return
			}

			failures.Success(key)
			AddLogField(r.Context(), "subject", identity.Subject)

			ctx := auth.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission wraps a handler group behind the permission gate.
func RequirePermission(gate *auth.Gate, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if err := gate.Require(identity, permission); err != nil {
				AddError(r.Context(), err)
				WriteTypedError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package server

import (
	"bytes"
	"net/http"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/auth"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/cache"
)

// CacheMiddleware short-circuits GET requests on a cache hit and stores
// successful GET responses on the way out. Keys are scoped by the identity
// subject so two principals never share an entry; anonymous requests share
// the anonymous segment. Every cacheable response carries X-Cache.
func CacheMiddleware(c *cache.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			subject := auth.AnonymousSubject
			if identity, ok := auth.IdentityFromContext(r.Context()); ok {
				subject = identity.Subject
			}
			key := cache.Key(r.Method, r.URL.Path, r.URL.RawQuery, subject)

			if entry, ok := c.Get(key); ok {
				AddLogField(r.Context(), "cache", "hit")
				w.Header().Set("X-Cache", "HIT")
				if entry.ContentType != "" {
					w.Header().Set("Content-Type", entry.ContentType)
				}
				w.WriteHeader(entry.Status)
				w.Write(entry.Body)
				return
			}

			AddLogField(r.Context(), "cache", "miss")
			w.Header().Set("X-Cache", "MISS")

			recorder := &cachingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			// Only successful responses are memoized. The write happens
			// after the response is committed, so a racing read sees
			// either the old entry or the new one, never a partial.
			if recorder.statusCode >= 200 && recorder.statusCode < 300 {
				c.Put(key, r.URL.Path, cache.Entry{
					Status:      recorder.statusCode,
					ContentType: recorder.Header().Get("Content-Type"),
					Body:        recorder.body.Bytes(),
				})
			}
		})
	}
}

// cachingResponseWriter tees the response body so it can be memoized after
// the handler completes.
type cachingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *cachingResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *cachingResponseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

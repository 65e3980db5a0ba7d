package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/alert"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/auth"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/ratelimit"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/session"
)

// CredentialFunc checks a login attempt and returns the principal's
// attributes. Implemented by the account backend; the pipeline treats it
// as an opaque check.
type CredentialFunc func(ctx context.Context, email, password string) (subject, role string, permissions []string, ok bool)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginHandler issues opaque session tokens. Failed attempts feed the
// consecutive-failure tracker keyed by client IP, so repeated bad logins
// hard-block the client even though the path is on the public allow-list.
func LoginHandler(store session.Store, checker CredentialFunc, ttl time.Duration, failures *ratelimit.FailureTracker, reporter Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if blocked, retry := failures.Blocked(key, time.Now()); blocked {
			writeRateLimited(w, retry)
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteValidation(w, "invalid request body", nil)
			return
		}

		var fieldErrors []FieldError
		if req.Email == "" {
			fieldErrors = append(fieldErrors, FieldError{Field: "email", Message: "email is required"})
		}
		if req.Password == "" {
			fieldErrors = append(fieldErrors, FieldError{Field: "password", Message: "password is required"})
		}
		if len(fieldErrors) > 0 {
			WriteValidation(w, "validation failed", fieldErrors)
			return
		}

		subject, role, permissions, ok := checker(r.Context(), req.Email, req.Password)
		if !ok {
			if tipped := failures.Fail(key, time.Now()); tipped && reporter != nil {
				reporter.Event("auth_failures",
					fmt.Sprintf("client %s blocked after repeated failed logins", key),
					alert.SeverityWarning,
					map[string]string{"client": key})
			}
			WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		failures.Success(key)

		now := time.Now()
		sess := session.Session{
			Token:       uuid.New().String(),
			Subject:     subject,
			Role:        role,
			Permissions: permissions,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		if err := store.Put(r.Context(), sess); err != nil {
			AddError(r.Context(), err)
			WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		WriteJSON(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
	}
}

// LogoutHandler revokes the presented session token.
func LogoutHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.ExtractBearer(r)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := store.Delete(r.Context(), raw); err != nil {
			AddError(r.Context(), err)
			WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	}
}

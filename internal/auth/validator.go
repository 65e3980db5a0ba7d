package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/session"
)

// Validator resolves a raw bearer credential to an identity.
type Validator interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

// ExtractBearer extracts the bearer credential from the Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// SessionValidator verifies opaque session tokens against the session store
// and slides the expiry forward on each successful use.
type SessionValidator struct {
	store   session.Store
	renewal time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// NewSessionValidator creates a validator backed by the given store.
// renewal is the sliding-expiration window added on every successful
// verification; timeout bounds each store call.
func NewSessionValidator(store session.Store, renewal, timeout time.Duration, logger *slog.Logger) *SessionValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionValidator{store: store, renewal: renewal, timeout: timeout, logger: logger}
}

func (v *SessionValidator) Verify(ctx context.Context, raw string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	sess, err := v.store.Get(ctx, raw)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("session lookup: %w", err)
	}

	now := time.Now()
	if !sess.ExpiresAt.After(now) {
		return Identity{}, ErrExpired
	}

	// Sliding expiration: extend the session, never shorten it. Renewal is
	// idempotent, so a concurrent renewal of the same token is harmless; a
	// renewal failure does not fail the request since the session was
	// already accepted.
	until := sess.ExpiresAt
	if candidate := now.Add(v.renewal); candidate.After(until) {
		if err := v.store.Renew(ctx, raw, candidate); err != nil {
			v.logger.Warn("session renewal failed",
				slog.String("subject", sess.Subject),
				slog.String("error", err.Error()),
			)
		} else {
			until = candidate
		}
	}

	return Identity{
		Subject:       sess.Subject,
		Role:          sess.Role,
		Permissions:   PermissionSet(sess.Permissions),
		SessionExpiry: until,
	}, nil
}

// TokenClaims are the claims carried by a signed token.
type TokenClaims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// TokenValidator verifies self-contained HS256-signed tokens. Stateless:
// no store side effects.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

func (v *TokenValidator) Verify(_ context.Context, raw string) (Identity, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Identity{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Identity{}, ErrInvalidSignature
		default:
			return Identity{}, ErrMalformed
		}
	}

	if !token.Valid || claims.Subject == "" {
		return Identity{}, ErrMalformed
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	return Identity{
		Subject:       claims.Subject,
		Role:          claims.Role,
		Permissions:   PermissionSet(claims.Permissions),
		SessionExpiry: expiry,
	}, nil
}

// Sign issues a signed token for the given identity attributes. Used by the
// login flow and by tests.
func (v *TokenValidator) Sign(subject, role string, permissions []string, expiresAt time.Time) (string, error) {
	claims := TokenClaims{
		Role:        role,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// CredentialValidator routes a raw credential to the session or signed-token
// path. Signed tokens are structurally distinguishable (three dot-separated
// segments); everything else is treated as an opaque session token.
type CredentialValidator struct {
	sessions *SessionValidator
	tokens   *TokenValidator
}

func NewCredentialValidator(sessions *SessionValidator, tokens *TokenValidator) *CredentialValidator {
	return &CredentialValidator{sessions: sessions, tokens: tokens}
}

func (v *CredentialValidator) Verify(ctx context.Context, raw string) (Identity, error) {
	if strings.Count(raw, ".") == 2 {
		return v.tokens.Verify(ctx, raw)
	}
	return v.sessions.Verify(ctx, raw)
}

var (
	_ Validator = (*SessionValidator)(nil)
	_ Validator = (*TokenValidator)(nil)
	_ Validator = (*CredentialValidator)(nil)
)

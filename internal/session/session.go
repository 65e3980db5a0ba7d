// Package session provides the TTL key-value store backing opaque session
// tokens. Sessions can live in-memory (default) or in SQLite.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a token has no session, or the session was
// already reaped.
var ErrNotFound = errors.New("session not found")

// Session is the server-side state for an issued opaque token. Expired
// sessions are surfaced by Get with their original expiry so callers can
// distinguish expired from missing; the janitor reaps them later.
type Session struct {
	Token       string    `db:"token"`
	Subject     string    `db:"subject"`
	Role        string    `db:"role"`
	Permissions []string  `db:"-"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// Store abstracts session CRUD so sessions can be kept in memory or in
// persistent backing storage.
type Store interface {
	// Get retrieves a session by token, expired or not.
	Get(ctx context.Context, token string) (Session, error)
	// Put creates or replaces a session.
	Put(ctx context.Context, s Session) error
	// Renew moves a session's expiry forward. Renewing an absent token
	// returns ErrNotFound. Idempotent for equal targets.
	Renew(ctx context.Context, token string, until time.Time) error
	// Delete removes a session. Deleting an absent token is a no-op.
	Delete(ctx context.Context, token string) error
	// Reap removes all sessions expired before now and reports how many.
	Reap(ctx context.Context, now time.Time) (int64, error)
	// Close releases backing resources.
	Close() error
}

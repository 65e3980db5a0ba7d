package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/session"
)

const testSecret = "test-signing-secret"

func newTestSession(t *testing.T, store session.Store, token string, expiresAt time.Time) {
	t.Helper()
	err := store.Put(context.Background(), session.Session{
		Token:       token,
		Subject:     "user-1",
		Role:        "staff",
		Permissions: []string{"bookings:read"},
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		t.Fatalf("put session: %v", err)
	}
}

func TestSessionValidatorSuccess(t *testing.T) {
	store := session.NewMemoryStore()
	newTestSession(t, store, "tok-1", time.Now().Add(time.Hour))

	v := NewSessionValidator(store, 30*time.Minute, time.Second, nil)
	id, err := v.Verify(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "user-1" || id.Role != "staff" {
		t.Errorf("identity = %+v", id)
	}
	if !id.Has("bookings:read") {
		t.Error("permission missing from identity")
	}
}

func TestSessionValidatorSlidesExpiry(t *testing.T) {
	store := session.NewMemoryStore()
	expiry := time.Now().Add(time.Minute)
	newTestSession(t, store, "tok-1", expiry)

	v := NewSessionValidator(store, time.Hour, time.Second, nil)
	if _, err := v.Verify(context.Background(), "tok-1"); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	sess, err := store.Get(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Get after verify: %v", err)
	}
	if !sess.ExpiresAt.After(expiry) {
		t.Errorf("expiry not renewed: %v <= %v", sess.ExpiresAt, expiry)
	}
}

func TestSessionValidatorNeverShortensExpiry(t *testing.T) {
	store := session.NewMemoryStore()
	expiry := time.Now().Add(24 * time.Hour)
	newTestSession(t, store, "tok-1", expiry)

	// Renewal window far shorter than the remaining lifetime.
	v := NewSessionValidator(store, 30*time.Minute, time.Second, nil)
	if _, err := v.Verify(context.Background(), "tok-1"); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	sess, err := store.Get(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Get after verify: %v", err)
	}
	if !sess.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry changed: %v, want %v", sess.ExpiresAt, expiry)
	}
}

func TestSessionValidatorExpired(t *testing.T) {
	store := session.NewMemoryStore()
	newTestSession(t, store, "tok-1", time.Now().Add(-time.Minute))

	v := NewSessionValidator(store, time.Hour, time.Second, nil)
	if _, err := v.Verify(context.Background(), "tok-1"); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestSessionValidatorNotFound(t *testing.T) {
	v := NewSessionValidator(session.NewMemoryStore(), time.Hour, time.Second, nil)
	if _, err := v.Verify(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTokenValidatorRoundTrip(t *testing.T) {
	v := NewTokenValidator(testSecret)
	raw, err := v.Sign("user-2", "admin", []string{"users:admin"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	id, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "user-2" || id.Role != "admin" {
		t.Errorf("identity = %+v", id)
	}
	if !id.Has("users:admin") {
		t.Error("permission missing from identity")
	}
}

func TestTokenValidatorExpired(t *testing.T) {
	v := NewTokenValidator(testSecret)
	raw, err := v.Sign("user-2", "staff", nil, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestTokenValidatorWrongSecret(t *testing.T) {
	signer := NewTokenValidator("other-secret")
	raw, err := signer.Sign("user-2", "staff", nil, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v := NewTokenValidator(testSecret)
	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestTokenValidatorMalformed(t *testing.T) {
	v := NewTokenValidator(testSecret)
	if _, err := v.Verify(context.Background(), "not.a.token"); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestCredentialValidatorRoutes(t *testing.T) {
	store := session.NewMemoryStore()
	newTestSession(t, store, "opaque-token", time.Now().Add(time.Hour))

	tokens := NewTokenValidator(testSecret)
	v := NewCredentialValidator(
		NewSessionValidator(store, time.Hour, time.Second, nil),
		tokens,
	)

	// Opaque token goes through the session store.
	if id, err := v.Verify(context.Background(), "opaque-token"); err != nil || id.Subject != "user-1" {
		t.Errorf("opaque path: id=%+v err=%v", id, err)
	}

	// Signed token never touches the store.
	raw, err := tokens.Sign("user-3", "staff", nil, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if id, err := v.Verify(context.Background(), raw); err != nil || id.Subject != "user-3" {
		t.Errorf("signed path: id=%+v err=%v", id, err)
	}
}

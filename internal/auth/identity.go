package auth

import (
	"context"
	"time"
)

// AnonymousSubject is the identity subject used for requests that reach the
// pipeline without a credential via the public allow-list.
const AnonymousSubject = "anonymous"

// Identity is the authenticated principal for a single request. It is
// attached read-only to the request context and must never outlive the
// request that produced it.
type Identity struct {
	Subject       string
	Role          string
	Permissions   map[string]struct{}
	SessionExpiry time.Time
}

// Anonymous returns the identity used for public routes.
func Anonymous() Identity {
	return Identity{Subject: AnonymousSubject, Role: "anonymous"}
}

// IsAnonymous reports whether the identity was produced by the public-path
// bypass rather than credential verification.
func (id Identity) IsAnonymous() bool {
	return id.Subject == AnonymousSubject
}

// Has reports whether the identity holds the named permission verbatim.
func (id Identity) Has(permission string) bool {
	_, ok := id.Permissions[permission]
	return ok
}

// PermissionSet builds an Identity permission set from a slice.
func PermissionSet(perms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// identityKey identifies the request-scoped identity.
type identityKey struct{}

// WithIdentity attaches an identity to the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext retrieves the identity attached by the auth
// middleware. The second return is false when no middleware ran.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

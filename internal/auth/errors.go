package auth

import "fmt"

// ErrorKind classifies credential verification failures. All kinds map to
// HTTP 401; the kind is for logging and tests, never exposed to clients.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindExpired
	KindInvalidSignature
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a typed credential verification failure.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// Typed failures returned by validators. Comparable with errors.Is because
// each verification path returns these exact values.
var (
	ErrNotFound         = &Error{Kind: KindNotFound, msg: "credential not found"}
	ErrExpired          = &Error{Kind: KindExpired, msg: "credential expired"}
	ErrInvalidSignature = &Error{Kind: KindInvalidSignature, msg: "invalid credential signature"}
	ErrMalformed        = &Error{Kind: KindMalformed, msg: "malformed credential"}
)

// ForbiddenError is returned by the permission gate when an authenticated
// identity lacks a required permission. Maps to HTTP 403.
type ForbiddenError struct {
	Required string
	Role     string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("permission %q required (role %q)", e.Required, e.Role)
}

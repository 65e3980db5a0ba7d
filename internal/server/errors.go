package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/auth"
)

// Two wire conventions coexist for historical reasons: governance failures
// (auth, permission, rate limit, internal) use {"error": ...} while
// validation failures use {"success": false, "message": ..., "errors":
// [...]}. Existing clients key off both shapes, so both stay supported.

type errorBody struct {
	Error string `json:"error"`
}

// FieldError is one itemized validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationBody struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a governance failure in the {"error": ...} convention.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// WriteValidation writes a validation failure in the
// {"success": false, ...} convention.
func WriteValidation(w http.ResponseWriter, msg string, fieldErrors []FieldError) {
	WriteJSON(w, http.StatusBadRequest, validationBody{
		Success: false,
		Message: msg,
		Errors:  fieldErrors,
	})
}

// WriteTypedError maps a typed component failure to HTTP status + body.
// Unknown errors become an opaque 500 so internals never leak to clients.
func WriteTypedError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var forbidden *auth.ForbiddenError
	if errors.As(err, &forbidden) {
		WriteJSON(w, http.StatusForbidden, struct {
			Error    string `json:"error"`
			Required string `json:"required_permission"`
			Role     string `json:"current_role"`
		}{
			Error:    "insufficient permissions",
			Required: forbidden.Required,
			Role:     forbidden.Role,
		})
		return
	}

	WriteError(w, http.StatusInternalServerError, "internal server error")
}

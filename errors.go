package authify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Error codes used across the auth flows
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeExpired      = "expired"
	CodeInternal     = "internal_error"
)

// AuthError is a domain error carrying an HTTP status and a stable code.
// Handlers never leak raw storage errors; everything crossing the HTTP
// boundary is either an AuthError or collapsed to a generic 500.
type AuthError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AuthError) Error() string { return e.Message }

// NewAuthError creates an error with an explicit status and code.
func NewAuthError(status int, code, message string) *AuthError {
	return &AuthError{Status: status, Code: code, Message: message}
}

func ErrBadRequest(message string) *AuthError {
	return NewAuthError(http.StatusBadRequest, CodeBadRequest, message)
}

func ErrUnauthorized(message string) *AuthError {
	return NewAuthError(http.StatusUnauthorized, CodeUnauthorized, message)
}

func ErrForbidden(message string) *AuthError {
	return NewAuthError(http.StatusForbidden, CodeForbidden, message)
}

func ErrNotFound(message string) *AuthError {
	return NewAuthError(http.StatusNotFound, CodeNotFound, message)
}

func ErrConflict(message string) *AuthError {
	return NewAuthError(http.StatusConflict, CodeConflict, message)
}

// ErrExpired marks credentials (OTPs, tokens) past their validity window.
// OTP expiry surfaces as a 400 to match the reset flow's contract.
func ErrExpired(message string) *AuthError {
	return NewAuthError(http.StatusBadRequest, CodeExpired, message)
}

func ErrInternal(message string) *AuthError {
	return NewAuthError(http.StatusInternalServerError, CodeInternal, message)
}

// WriteJSON writes v as a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("error encoding response", "err", err)
	}
}

// WriteError translates any error into the uniform {status, code, message}
// body. Unrecognized errors become a generic 500 so internal details never
// reach the client.
func WriteError(w http.ResponseWriter, err error) {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		slog.Error("unexpected error at http boundary", "err", err)
		authErr = ErrInternal("Internal server error")
	}
	WriteJSON(w, authErr.Status, authErr)
}

// Package authsdk is a typed client for the keyfort authentication service.
// It mirrors the service's request/response shapes and error taxonomy so
// callers (and the end-to-end suite) never hand-roll JSON.
package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/keyfortlabs/keyfort/pkg/httpx"
)

// Error codes shared between the server handlers and this client.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeDuplicateIdentity   = "duplicate_identity"
	ErrorCodeNotFound            = "not_found"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeVerificationFailed  = "verification_failed"
	ErrorCodeInvalidCode         = "invalid_code"
	ErrorCodeTwoFactorNotEnabled = "two_factor_not_enabled"
	ErrorCodeNoCredential        = "no_credential"
	ErrorCodeServerError         = "server_error"
)

// APIError is the service's error envelope. It implements the error
// interface and is used both by HTTP handlers (to write responses) and by
// the SDK client (to represent failures).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g., "invalid_code")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	// ErrInvalidRequest is returned for malformed JSON bodies or missing fields.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrDuplicateIdentity is returned when the username or email is taken.
	ErrDuplicateIdentity = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeDuplicateIdentity,
		Description: "username or email already registered",
	}

	// ErrNotFound is returned when the identity does not exist.
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "user not found",
	}

	// ErrInvalidCredentials is returned on a password mismatch.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	// ErrVerificationFailed is returned when a passkey ceremony fails.
	ErrVerificationFailed = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeVerificationFailed,
		Description: "could not verify the credential response",
	}

	// ErrInvalidCode is returned when a one-time code does not verify.
	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidCode,
		Description: "invalid one-time code",
	}

	// ErrTwoFactorNotEnabled is returned when no active TOTP secret exists.
	ErrTwoFactorNotEnabled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeTwoFactorNotEnabled,
		Description: "two-factor authentication is not enabled for this user",
	}

	// ErrNoCredential is returned when no passkey is enrolled.
	ErrNoCredential = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeNoCredential,
		Description: "no passkey enrolled for this user",
	}

	// ErrServerError is the catch-all for unexpected faults.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "the server encountered an unexpected condition",
	}
)

package authsdk

import "encoding/json"

// RegisterRequest creates a new identity with the password factor only.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse acknowledges identity creation.
type RegisterResponse struct {
	Username string `json:"username"`
	Created  bool   `json:"created"`
}

// LoginRequest verifies the password factor.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse acknowledges a successful password login.
type LoginResponse struct {
	Username string `json:"username"`
}

// PasskeyBeginRequest starts a passkey ceremony for a user.
type PasskeyBeginRequest struct {
	Username string `json:"username"`
}

// PasskeyBeginResponse carries the WebAuthn options payload verbatim; the
// client hands it to the browser credential API unmodified.
type PasskeyBeginResponse struct {
	Options json.RawMessage `json:"options"`
}

// PasskeyFinishRequest completes a passkey ceremony. Credential is the raw
// JSON produced by the browser credential API.
type PasskeyFinishRequest struct {
	Username   string          `json:"username"`
	Credential json.RawMessage `json:"credential"`
}

// PasskeyRegisterFinishResponse acknowledges a verified registration.
type PasskeyRegisterFinishResponse struct {
	Verified bool `json:"verified"`
}

// PasskeyLoginFinishResponse acknowledges a verified assertion.
type PasskeyLoginFinishResponse struct {
	Success bool `json:"success"`
}

// TOTPEnrollRequest starts TOTP enrollment for a user.
type TOTPEnrollRequest struct {
	Username string `json:"username"`
}

// TOTPEnrollResponse carries the provisioning QR image as a PNG data URI.
// The shared secret itself never leaves the server.
type TOTPEnrollResponse struct {
	Image   string `json:"image"`
	Success bool   `json:"success"`
}

// TOTPCodeRequest submits a one-time code for verification.
type TOTPCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// TOTPCodeResponse acknowledges a verified one-time code.
type TOTPCodeResponse struct {
	Success bool `json:"success"`
}

// HealthChecks reports per-dependency health in readiness responses.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
}

// HealthResponse is the payload of the livez/readyz endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SDKClient is an HTTP client for the keyfort service. All operations are
// unauthenticated request/response transactions; what a "session" means
// after a factor verifies is the caller's concern.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new keyfort service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates a new identity.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	var resp RegisterResponse
	err := c.post(ctx, "/v1/register", req, &resp)
	return resp, err
}

// Login verifies the password factor.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var resp LoginResponse
	err := c.post(ctx, "/v1/login", req, &resp)
	return resp, err
}

// BeginPasskeyRegistration requests credential creation options.
func (c *SDKClient) BeginPasskeyRegistration(ctx context.Context, username string) (PasskeyBeginResponse, error) {
	var resp PasskeyBeginResponse
	err := c.post(ctx, "/v1/passkeys/register/begin", PasskeyBeginRequest{Username: username}, &resp)
	return resp, err
}

// FinishPasskeyRegistration submits the attestation response.
func (c *SDKClient) FinishPasskeyRegistration(ctx context.Context, req PasskeyFinishRequest) (PasskeyRegisterFinishResponse, error) {
	var resp PasskeyRegisterFinishResponse
	err := c.post(ctx, "/v1/passkeys/register/finish", req, &resp)
	return resp, err
}

// BeginPasskeyLogin requests assertion options.
func (c *SDKClient) BeginPasskeyLogin(ctx context.Context, username string) (PasskeyBeginResponse, error) {
	var resp PasskeyBeginResponse
	err := c.post(ctx, "/v1/passkeys/login/begin", PasskeyBeginRequest{Username: username}, &resp)
	return resp, err
}

// FinishPasskeyLogin submits the assertion response.
func (c *SDKClient) FinishPasskeyLogin(ctx context.Context, req PasskeyFinishRequest) (PasskeyLoginFinishResponse, error) {
	var resp PasskeyLoginFinishResponse
	err := c.post(ctx, "/v1/passkeys/login/finish", req, &resp)
	return resp, err
}

// BeginTOTPEnrollment requests a provisioning QR image.
func (c *SDKClient) BeginTOTPEnrollment(ctx context.Context, username string) (TOTPEnrollResponse, error) {
	var resp TOTPEnrollResponse
	err := c.post(ctx, "/v1/totp/enroll", TOTPEnrollRequest{Username: username}, &resp)
	return resp, err
}

// FinishTOTPEnrollment verifies the first code and activates the secret.
func (c *SDKClient) FinishTOTPEnrollment(ctx context.Context, username, code string) (TOTPCodeResponse, error) {
	var resp TOTPCodeResponse
	err := c.post(ctx, "/v1/totp/verify", TOTPCodeRequest{Username: username, Code: code}, &resp)
	return resp, err
}

// VerifyTOTPLogin verifies a code against the enrolled secret.
func (c *SDKClient) VerifyTOTPLogin(ctx context.Context, username, code string) (TOTPCodeResponse, error) {
	var resp TOTPCodeResponse
	err := c.post(ctx, "/v1/totp/login", TOTPCodeRequest{Username: username, Code: code}, &resp)
	return resp, err
}

// Livez checks liveness.
func (c *SDKClient) Livez(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.get(ctx, "/livez", &resp)
	return resp, err
}

// Readyz checks readiness including database connectivity.
func (c *SDKClient) Readyz(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.get(ctx, "/readyz", &resp)
	return resp, err
}

func (c *SDKClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *SDKClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *SDKClient) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Code = ErrorCodeServerError
			apiErr.Description = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package keyfort_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/keyfortlabs/keyfort/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLoginRateLimiting verifies the strict limit on password verification.
// Uses production default limits, unlike the rest of the suite.
func TestLoginRateLimiting(t *testing.T) {
	baseURL, cleanup := setupKeyfortContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Username: "grace",
		Email:    "grace@example.com",
		Password: "pw",
	})
	require.NoError(t, err)

	// Hammer the login endpoint until the strict limit trips. The default
	// strict profile allows 5 per minute.
	limited := false
	for range 10 {
		_, err := client.Login(ctx, authsdk.LoginRequest{
			Username: "grace",
			Password: "wrong-password",
		})
		require.Error(t, err)

		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		if apiErr.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.Equal(t, authsdk.ErrorCodeInvalidCredentials, apiErr.Code)
	}
	require.True(t, limited, "strict rate limit should trip within 10 attempts")
}

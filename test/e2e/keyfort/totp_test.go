package keyfort_test

import (
	"strings"
	"testing"

	"github.com/keyfortlabs/keyfort/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestTOTPEnrollment walks the enrollment surface. The shared secret never
// leaves the server, so code verification against a real authenticator is
// covered by the service-level tests; here we exercise the HTTP contract.
func TestTOTPEnrollment(t *testing.T) {
	baseURL, cleanup := setupKeyfortContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "pw",
	})
	require.NoError(t, err)

	t.Run("enroll returns a QR data URI", func(t *testing.T) {
		resp, err := client.BeginTOTPEnrollment(ctx, "carol")
		require.NoError(t, err)
		require.True(t, resp.Success)
		require.True(t, strings.HasPrefix(resp.Image, "data:image/png;base64,"),
			"image should be a PNG data URI")
	})

	t.Run("enroll for unknown user", func(t *testing.T) {
		_, err := client.BeginTOTPEnrollment(ctx, "nobody")
		requireAPIError(t, err, authsdk.ErrorCodeNotFound)
	})

	t.Run("wrong first code rejected and retryable", func(t *testing.T) {
		_, err := client.FinishTOTPEnrollment(ctx, "carol", "000000")
		requireAPIError(t, err, authsdk.ErrorCodeInvalidCode)

		// The pending enrollment survives the failed attempt.
		_, err = client.FinishTOTPEnrollment(ctx, "carol", "000000")
		requireAPIError(t, err, authsdk.ErrorCodeInvalidCode)
	})

	t.Run("login before activation rejected", func(t *testing.T) {
		_, err := client.VerifyTOTPLogin(ctx, "carol", "000000")
		requireAPIError(t, err, authsdk.ErrorCodeTwoFactorNotEnabled)
	})
}

// TestTOTPVerifyWithoutEnrollment checks the no-pending-secret path.
func TestTOTPVerifyWithoutEnrollment(t *testing.T) {
	baseURL, cleanup := setupKeyfortContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	ctx := t.Context()

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Username: "dave",
		Email:    "dave@example.com",
		Password: "pw",
	})
	require.NoError(t, err)

	_, err = client.FinishTOTPEnrollment(ctx, "dave", "123456")
	requireAPIError(t, err, authsdk.ErrorCodeInvalidRequest)
}

package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"

	"github.com/keyfortlabs/keyfort/internal/keyfort/domain"
	"github.com/keyfortlabs/keyfort/internal/keyfort/store"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30 // seconds per time step
	qrSize     = 256
)

var (
	ErrInvalidCode         = errors.New("invalid TOTP code")
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled for this user")
	ErrNotEnrolling        = errors.New("no pending TOTP enrollment for this user")
)

type TOTPService struct {
	Store  store.Store
	Issuer string // Issuer name for the provisioning URI (e.g., "KeyFort")
}

// BeginEnrollment generates a fresh shared secret for the user and returns a
// scannable provisioning image. The secret is stored in the pending slot and
// is never returned to the client; re-enrolling overwrites any previous
// pending secret. Two-factor is NOT enabled until the code is verified.
func (s *TOTPService) BeginEnrollment(ctx context.Context, username string) (domain.TOTPEnrollResponse, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return domain.TOTPEnrollResponse{}, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Username,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TOTPEnrollResponse{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	if err := s.Store.Users().SetPendingTOTPSecret(ctx, u.ID, key.Secret()); err != nil {
		return domain.TOTPEnrollResponse{}, fmt.Errorf("failed to store pending secret: %w", err)
	}

	image, err := renderProvisioningImage(key)
	if err != nil {
		return domain.TOTPEnrollResponse{}, fmt.Errorf("failed to render provisioning image: %w", err)
	}

	return domain.TOTPEnrollResponse{
		Image:   image,
		Issuer:  s.Issuer,
		Account: u.Username,
	}, nil
}

// FinishEnrollment verifies a code against the pending secret. On success the
// pending secret is promoted to the active slot and two-factor is enabled.
// On failure the pending secret is left intact so the client can retry
// against the same QR without re-scanning.
func (s *TOTPService) FinishEnrollment(ctx context.Context, username, code string) error {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u.PendingTOTPSecret == nil || *u.PendingTOTPSecret == "" {
		return ErrNotEnrolling
	}

	if !totp.Validate(code, *u.PendingTOTPSecret) {
		return ErrInvalidCode
	}

	if err := s.Store.Users().PromoteTOTPSecret(ctx, u.ID); err != nil {
		return fmt.Errorf("failed to promote TOTP secret: %w", err)
	}
	return nil
}

// VerifyLogin verifies a code against the active secret only. The pending
// secret is never a valid login factor.
func (s *TOTPService) VerifyLogin(ctx context.Context, username, code string) error {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if u.ActiveTOTPSecret == nil || *u.ActiveTOTPSecret == "" {
		return ErrTwoFactorNotEnabled
	}

	if !totp.Validate(code, *u.ActiveTOTPSecret) {
		return ErrInvalidCode
	}
	return nil
}

// renderProvisioningImage renders the otpauth:// URI as a PNG data URI.
func renderProvisioningImage(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

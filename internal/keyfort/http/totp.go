package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keyfortlabs/keyfort/internal/keyfort/service"
	"github.com/keyfortlabs/keyfort/internal/keyfort/store"
	"github.com/keyfortlabs/keyfort/pkg/authsdk"
	"github.com/keyfortlabs/keyfort/pkg/httpx"
	"github.com/keyfortlabs/keyfort/pkg/slogx"
)

// TOTPHandler handles TOTP enrollment and verification endpoints.
type TOTPHandler struct {
	TOTPService *service.TOTPService
}

// HandleEnroll handles POST /v1/totp/enroll
//
//	@Summary		Begin TOTP enrollment
//	@Description	Generates a pending TOTP secret for the user and returns a provisioning
//	@Description	QR code as a PNG data URI. Re-enrolling replaces any earlier pending
//	@Description	secret; an active secret is untouched until the new one is verified.
//	@Tags			TOTP
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPEnrollRequest	true	"Username"
//	@Success		200		{object}	authsdk.TOTPEnrollResponse	"QR code data URI"
//	@Failure		400		{object}	authsdk.APIError			"Invalid request body"
//	@Failure		404		{object}	authsdk.APIError			"Unknown user"
//	@Failure		500		{object}	authsdk.APIError			"Internal server error"
//	@Router			/v1/totp/enroll [post].
func (h *TOTPHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.TOTPEnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	enrollment, err := h.TOTPService.BeginEnrollment(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("totp enrollment for unknown user", "username", req.Username)
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		log.Error("failed to begin totp enrollment", "username", req.Username, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Image:   enrollment.Image,
		Success: true,
	})
}

// HandleVerify handles POST /v1/totp/verify
//
//	@Summary		Finish TOTP enrollment
//	@Description	Verifies the first code against the pending secret and activates it,
//	@Description	enabling two-factor auth for the user. A wrong code leaves the pending
//	@Description	secret in place so the user can retry.
//	@Tags			TOTP
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPCodeRequest		true	"One-time code"
//	@Success		200		{object}	authsdk.TOTPCodeResponse	"Secret activated"
//	@Failure		400		{object}	authsdk.APIError			"Invalid code or no enrollment in progress"
//	@Failure		404		{object}	authsdk.APIError			"Unknown user"
//	@Failure		500		{object}	authsdk.APIError			"Internal server error"
//	@Router			/v1/totp/verify [post].
func (h *TOTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req, ok := decodeCode(w, r)
	if !ok {
		return
	}

	if err := h.TOTPService.FinishEnrollment(ctx, req.Username, req.Code); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Warn("totp verify for unknown user", "username", req.Username)
			authsdk.ErrNotFound.WriteError(w)
		case errors.Is(err, service.ErrNotEnrolling):
			log.Warn("totp verify without pending enrollment", "username", req.Username)
			authsdk.ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrInvalidCode):
			log.Warn("invalid totp code during enrollment", "username", req.Username)
			authsdk.ErrInvalidCode.WriteError(w)
		default:
			log.Error("failed to verify totp enrollment", "username", req.Username, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	log.Info("totp enrollment verified", "username", req.Username)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPCodeResponse{Success: true})
}

// HandleLogin handles POST /v1/totp/login
//
//	@Summary		Verify a TOTP login code
//	@Description	Verifies a one-time code against the user's active secret. Pending
//	@Description	secrets from unfinished enrollments are never accepted here.
//	@Tags			TOTP
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPCodeRequest		true	"One-time code"
//	@Success		200		{object}	authsdk.TOTPCodeResponse	"Code verified"
//	@Failure		400		{object}	authsdk.APIError			"Invalid code or two-factor not enabled"
//	@Failure		404		{object}	authsdk.APIError			"Unknown user"
//	@Failure		500		{object}	authsdk.APIError			"Internal server error"
//	@Router			/v1/totp/login [post].
func (h *TOTPHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req, ok := decodeCode(w, r)
	if !ok {
		return
	}

	if err := h.TOTPService.VerifyLogin(ctx, req.Username, req.Code); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Warn("totp login for unknown user", "username", req.Username)
			authsdk.ErrNotFound.WriteError(w)
		case errors.Is(err, service.ErrTwoFactorNotEnabled):
			log.Warn("totp login without enrollment", "username", req.Username)
			authsdk.ErrTwoFactorNotEnabled.WriteError(w)
		case errors.Is(err, service.ErrInvalidCode):
			log.Warn("invalid totp code", "username", req.Username)
			authsdk.ErrInvalidCode.WriteError(w)
		default:
			log.Error("failed to verify totp login", "username", req.Username, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPCodeResponse{Success: true})
}

func decodeCode(w http.ResponseWriter, r *http.Request) (authsdk.TOTPCodeRequest, bool) {
	var req authsdk.TOTPCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return authsdk.TOTPCodeRequest{}, false
	}
	return req, true
}

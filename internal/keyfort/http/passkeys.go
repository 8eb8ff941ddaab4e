package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keyfortlabs/keyfort/internal/keyfort/service"
	"github.com/keyfortlabs/keyfort/internal/keyfort/store"
	"github.com/keyfortlabs/keyfort/pkg/authsdk"
	"github.com/keyfortlabs/keyfort/pkg/httpx"
	"github.com/keyfortlabs/keyfort/pkg/slogx"
)

// PasskeyHandler handles both passkey ceremonies.
type PasskeyHandler struct {
	PasskeyService *service.PasskeyService
	UserService    *service.UserService
}

// HandleRegisterBegin handles POST /v1/passkeys/register/begin
//
//	@Summary		Begin passkey registration
//	@Description	Mints a registration challenge and returns credential creation options
//	@Description	for the browser credential API. The challenge expires if not finished in time.
//	@Tags			Passkeys
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasskeyBeginRequest		true	"Username"
//	@Success		200		{object}	authsdk.PasskeyBeginResponse	"Credential creation options"
//	@Failure		400		{object}	authsdk.APIError				"Invalid request body"
//	@Failure		404		{object}	authsdk.APIError				"Unknown user"
//	@Failure		500		{object}	authsdk.APIError				"Internal server error"
//	@Router			/v1/passkeys/register/begin [post].
func (h *PasskeyHandler) HandleRegisterBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	username, ok := decodeBegin(w, r)
	if !ok {
		return
	}

	options, err := h.PasskeyService.BeginRegistration(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("passkey registration for unknown user", "username", username)
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		log.Error("failed to begin passkey registration", "username", username, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeOptions(w, log, options)
}

// HandleRegisterFinish handles POST /v1/passkeys/register/finish
//
//	@Summary		Finish passkey registration
//	@Description	Verifies the attestation response against the outstanding challenge,
//	@Description	stores the credential, and enables two-factor auth for the user.
//	@Description	The challenge is consumed whether or not verification succeeds.
//	@Tags			Passkeys
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasskeyFinishRequest			true	"Attestation response"
//	@Success		200		{object}	authsdk.PasskeyRegisterFinishResponse	"Credential registered"
//	@Failure		400		{object}	authsdk.APIError						"Verification failed or challenge expired"
//	@Failure		404		{object}	authsdk.APIError						"Unknown user"
//	@Failure		500		{object}	authsdk.APIError						"Internal server error"
//	@Router			/v1/passkeys/register/finish [post].
func (h *PasskeyHandler) HandleRegisterFinish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req, ok := decodeFinish(w, r)
	if !ok {
		return
	}

	if err := h.PasskeyService.FinishRegistration(ctx, req.Username, req.Credential); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Warn("passkey registration for unknown user", "username", req.Username)
			authsdk.ErrNotFound.WriteError(w)
		case errors.Is(err, service.ErrVerificationFailed):
			log.Warn("passkey registration rejected", "username", req.Username, "err", err)
			authsdk.ErrVerificationFailed.WriteError(w)
		default:
			log.Error("failed to finish passkey registration", "username", req.Username, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	log.Info("passkey registered", "username", req.Username)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.PasskeyRegisterFinishResponse{Verified: true})
}

// HandleLoginBegin handles POST /v1/passkeys/login/begin
//
//	@Summary		Begin passkey login
//	@Description	Mints a login challenge and returns assertion options listing the
//	@Description	user's registered credential.
//	@Tags			Passkeys
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasskeyBeginRequest		true	"Username"
//	@Success		200		{object}	authsdk.PasskeyBeginResponse	"Credential assertion options"
//	@Failure		400		{object}	authsdk.APIError				"No passkey registered"
//	@Failure		404		{object}	authsdk.APIError				"Unknown user"
//	@Failure		500		{object}	authsdk.APIError				"Internal server error"
//	@Router			/v1/passkeys/login/begin [post].
func (h *PasskeyHandler) HandleLoginBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	username, ok := decodeBegin(w, r)
	if !ok {
		return
	}

	options, err := h.PasskeyService.BeginLogin(ctx, username)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Warn("passkey login for unknown user", "username", username)
			authsdk.ErrNotFound.WriteError(w)
		case errors.Is(err, service.ErrNoCredential):
			log.Warn("passkey login without registered credential", "username", username)
			authsdk.ErrNoCredential.WriteError(w)
		default:
			log.Error("failed to begin passkey login", "username", username, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	writeOptions(w, log, options)
}

// HandleLoginFinish handles POST /v1/passkeys/login/finish
//
//	@Summary		Finish passkey login
//	@Description	Verifies the assertion response against the outstanding challenge and
//	@Description	the stored credential, then persists the updated signature counter.
//	@Tags			Passkeys
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasskeyFinishRequest		true	"Assertion response"
//	@Success		200		{object}	authsdk.PasskeyLoginFinishResponse	"Assertion verified"
//	@Failure		400		{object}	authsdk.APIError					"Verification failed, challenge expired, or no passkey registered"
//	@Failure		404		{object}	authsdk.APIError					"Unknown user"
//	@Failure		500		{object}	authsdk.APIError					"Internal server error"
//	@Router			/v1/passkeys/login/finish [post].
func (h *PasskeyHandler) HandleLoginFinish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req, ok := decodeFinish(w, r)
	if !ok {
		return
	}

	if err := h.PasskeyService.FinishLogin(ctx, req.Username, req.Credential); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Warn("passkey login for unknown user", "username", req.Username)
			authsdk.ErrNotFound.WriteError(w)
		case errors.Is(err, service.ErrNoCredential):
			log.Warn("passkey login without registered credential", "username", req.Username)
			authsdk.ErrNoCredential.WriteError(w)
		case errors.Is(err, service.ErrVerificationFailed):
			log.Warn("passkey assertion rejected", "username", req.Username, "err", err)
			authsdk.ErrVerificationFailed.WriteError(w)
		default:
			log.Error("failed to finish passkey login", "username", req.Username, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	log.Info("passkey login verified", "username", req.Username)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.PasskeyLoginFinishResponse{Success: true})
}

func decodeBegin(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req authsdk.PasskeyBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return "", false
	}
	return req.Username, true
}

func decodeFinish(w http.ResponseWriter, r *http.Request) (authsdk.PasskeyFinishRequest, bool) {
	var req authsdk.PasskeyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || len(req.Credential) == 0 {
		authsdk.ErrInvalidRequest.WriteError(w)
		return authsdk.PasskeyFinishRequest{}, false
	}
	return req, true
}

func writeOptions(w http.ResponseWriter, log *slog.Logger, options any) {
	raw, err := json.Marshal(options)
	if err != nil {
		log.Error("failed to encode webauthn options", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.PasskeyBeginResponse{Options: raw})
}

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

// IdentityHandler handles registration and password login.
type IdentityHandler struct {
	UserService *service.UserService
}

// HandleRegister handles POST /v1/register
//
//	@Summary		Register a new identity
//	@Description	Creates a user with the password factor. Username and email must be unique.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Identity details"
//	@Success		201		{object}	authsdk.RegisterResponse	"Identity created"
//	@Failure		400		{object}	authsdk.APIError			"Invalid request body"
//	@Failure		409		{object}	authsdk.APIError			"Username or email already taken"
//	@Failure		500		{object}	authsdk.APIError			"Internal server error"
//	@Router			/v1/register [post].
func (h *IdentityHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.UserService.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateIdentity) {
			log.Warn("duplicate identity", "username", req.Username)
			authsdk.ErrDuplicateIdentity.WriteError(w)
			return
		}
		log.Error("failed to register user", "username", req.Username, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	log.Info("user registered", "user_id", user.ID, "username", user.Username)
	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		Username: user.Username,
		Created:  true,
	})
}

// HandleLogin handles POST /v1/login
//
//	@Summary		Password login
//	@Description	Verifies the password factor for a user. Passkey and TOTP factors
//	@Description	verify through their own endpoints.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Password verified"
//	@Failure		400		{object}	authsdk.APIError		"Invalid request body"
//	@Failure		401		{object}	authsdk.APIError		"Wrong password"
//	@Failure		404		{object}	authsdk.APIError		"Unknown user"
//	@Failure		500		{object}	authsdk.APIError		"Internal server error"
//	@Router			/v1/login [post].
func (h *IdentityHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.UserService.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Warn("login for unknown user", "username", req.Username)
			authsdk.ErrNotFound.WriteError(w)
		case errors.Is(err, service.ErrInvalidCredentials):
			log.Warn("invalid password", "username", req.Username)
			authsdk.ErrInvalidCredentials.WriteError(w)
		default:
			log.Error("failed to verify password", "username", req.Username, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		Username: user.Username,
	})
}

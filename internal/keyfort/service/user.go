package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/keyfortlabs/keyfort/internal/keyfort/domain"
	"github.com/keyfortlabs/keyfort/internal/keyfort/store"
	"github.com/keyfortlabs/keyfort/pkg/cryptox"
	"github.com/keyfortlabs/keyfort/pkg/idx"
)

var (
	ErrDuplicateIdentity  = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type UserService struct {
	Store store.Store
}

// Register creates a new identity with the password factor only. Uniqueness
// of username and email comes from the store's constraints, so two
// concurrent registrations for the same name cannot both succeed.
func (s *UserService) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateIdentity
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// Login verifies the password factor. It never consults the two-factor flag:
// second factors are independent capabilities the client invokes explicitly.
// A missing user surfaces as store.ErrNotFound, distinct from a password
// mismatch.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// GetUserByUsername fetches a user by username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.Store.Users().GetUserByUsername(ctx, username)
}

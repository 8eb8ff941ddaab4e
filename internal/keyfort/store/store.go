package store

import (
	"context"
	"errors"
	"time"

	"github.com/keyfortlabs/keyfort/internal/keyfort/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a WithTx helper for the few multi-step operations that must
// be atomic (challenge consumption, secret promotion).
type Store interface {
	Users() Users
	PasskeyCredentials() PasskeyCredentials
	Challenges() Challenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is the primary lookup for every flow entry point.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail is used only to shape duplicate errors at registration.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Uniqueness of username and email is enforced by the schema; a
	// constraint violation surfaces as ErrAlreadyExists and is the sole
	// source of duplicate-identity failures.
	CreateUser(ctx context.Context, u domain.User) error

	// SetPendingTOTPSecret stores (or overwrites) the enrollment secret.
	SetPendingTOTPSecret(ctx context.Context, userID, secret string) error

	// PromoteTOTPSecret moves the pending secret into the active slot,
	// clears the pending slot and marks two-factor as enabled.
	PromoteTOTPSecret(ctx context.Context, userID string) error

	// EnableTwoFA marks the two-factor flag (sets the enabled timestamp).
	// Idempotent; the flag is monotonic and never cleared in-scope.
	EnableTwoFA(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type PasskeyCredentials interface {
	// GetByUserID returns the enrolled credential for a user.
	GetByUserID(ctx context.Context, userID string) (domain.PasskeyCredential, error)

	// Upsert stores a verified credential, replacing any prior enrollment.
	Upsert(ctx context.Context, c domain.PasskeyCredential) error

	// UpdateSignCount persists the authenticator counter after a
	// successful assertion.
	UpdateSignCount(ctx context.Context, userID string, signCount uint32) error
}

type Challenges interface {
	// Put stores a challenge, overwriting any outstanding challenge of the
	// same kind for the same user.
	Put(ctx context.Context, ch domain.Challenge) error

	// Get returns the outstanding challenge for (user, kind). Expired
	// challenges are reported as ErrNotFound.
	Get(ctx context.Context, userID string, kind domain.ChallengeKind) (domain.Challenge, error)

	// Delete consumes a challenge. Consumption happens on every finish
	// attempt, successful or not.
	Delete(ctx context.Context, userID string, kind domain.ChallengeKind) error

	// DeleteExpired removes challenges past the given time (housekeeping).
	DeleteExpired(ctx context.Context, now time.Time) error
}

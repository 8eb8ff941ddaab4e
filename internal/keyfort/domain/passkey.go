package domain

import "time"

// ChallengeKind distinguishes the two WebAuthn ceremonies a challenge can
// belong to. Challenges are keyed by (user, kind) so a registration and an
// authentication ceremony can be outstanding at the same time without
// clobbering each other.
type ChallengeKind string

const (
	ChallengeKindRegistration ChallengeKind = "passkey_registration"
	ChallengeKindLogin        ChallengeKind = "passkey_login"
)

// Challenge is a single outstanding WebAuthn ceremony for one user. The
// session payload is the serialized webauthn.SessionData produced by the
// begin step. Reissuing a challenge of the same kind overwrites the previous
// one; a finish attempt consumes it whether verification succeeds or not.
type Challenge struct {
	UserID      string
	Kind        ChallengeKind
	SessionData []byte // JSON-encoded webauthn.SessionData
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// PasskeyCredential is the verified public-key credential bound to a user.
// SignCount is advanced and persisted on every successful assertion so that
// counter regressions (cloned authenticators) are detected.
type PasskeyCredential struct {
	UserID          string
	CredentialID    []byte
	PublicKey       []byte
	SignCount       uint32
	Transports      []string
	AttestationType string
	AAGUID          []byte
	BackupEligible  bool
	BackupState     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

package domain

import "time"

// User is the aggregate root for a single identity. Username and email are
// immutable after creation and unique across the store.
type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string     // argon2id encoded
	TwoFAEnabled      *time.Time // Timestamp when the first second factor was enrolled (nullable)
	PendingTOTPSecret *string    // Base32 secret awaiting enrollment verification (nullable)
	ActiveTOTPSecret  *string    // Enrolled TOTP secret, the only valid login factor (nullable)
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasTwoFA reports whether any second factor has been enrolled.
func (u User) HasTwoFA() bool { return u.TwoFAEnabled != nil }

package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/keyfortlabs/keyfort/internal/keyfort/domain"
)

type passkeyCredentialsRepo struct {
	db dbtx
}

func (r *passkeyCredentialsRepo) GetByUserID(ctx context.Context, userID string) (domain.PasskeyCredential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, credential_id, public_key, sign_count, transports,
			attestation_type, aaguid, backup_eligible, backup_state,
			created_at, updated_at
		 FROM passkey_credentials WHERE user_id = ?`, userID)

	var (
		c          domain.PasskeyCredential
		transports string
	)
	err := row.Scan(
		&c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount, &transports,
		&c.AttestationType, &c.AAGUID, &c.BackupEligible, &c.BackupState,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.PasskeyCredential{}, mapNotFound(err)
	}
	if transports != "" {
		c.Transports = strings.Split(transports, " ")
	}
	return c, nil
}

func (r *passkeyCredentialsRepo) Upsert(ctx context.Context, c domain.PasskeyCredential) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO passkey_credentials (
			user_id, credential_id, public_key, sign_count, transports,
			attestation_type, aaguid, backup_eligible, backup_state,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			credential_id = excluded.credential_id,
			public_key = excluded.public_key,
			sign_count = excluded.sign_count,
			transports = excluded.transports,
			attestation_type = excluded.attestation_type,
			aaguid = excluded.aaguid,
			backup_eligible = excluded.backup_eligible,
			backup_state = excluded.backup_state,
			updated_at = excluded.updated_at`,
		c.UserID, c.CredentialID, c.PublicKey, c.SignCount,
		strings.Join(c.Transports, " "), c.AttestationType, c.AAGUID,
		c.BackupEligible, c.BackupState, now, now)
	return mapConstraint(err)
}

func (r *passkeyCredentialsRepo) UpdateSignCount(ctx context.Context, userID string, signCount uint32) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE passkey_credentials SET sign_count = ?, updated_at = ? WHERE user_id = ?`,
		signCount, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

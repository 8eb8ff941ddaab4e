package sqlite

import (
	"context"
	"time"

	"github.com/keyfortlabs/keyfort/internal/keyfort/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) Put(ctx context.Context, ch domain.Challenge) error {
	created := ch.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO challenges (user_id, kind, session_data, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, kind) DO UPDATE SET
			session_data = excluded.session_data,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		ch.UserID, string(ch.Kind), ch.SessionData, ch.ExpiresAt.UTC(), created)
	return err
}

func (r *challengesRepo) Get(ctx context.Context, userID string, kind domain.ChallengeKind) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, kind, session_data, expires_at, created_at
		 FROM challenges WHERE user_id = ? AND kind = ? AND expires_at > ?`,
		userID, string(kind), time.Now().UTC())

	var ch domain.Challenge
	var kindStr string
	if err := row.Scan(&ch.UserID, &kindStr, &ch.SessionData, &ch.ExpiresAt, &ch.CreatedAt); err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	ch.Kind = domain.ChallengeKind(kindStr)
	return ch, nil
}

func (r *challengesRepo) Delete(ctx context.Context, userID string, kind domain.ChallengeKind) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE user_id = ? AND kind = ?`,
		userID, string(kind))
	return err
}

func (r *challengesRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at <= ?`, now.UTC())
	return err
}

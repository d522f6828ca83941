package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s Store) CreateEmailVerification(ctx context.Context, tokenHash string, userID uuid.UUID, expiresAt time.Time) error {
	q := `
INSERT INTO email_verifications (token_hash, user_id, expires_at)
VALUES ($1, $2, $3);
`
	_, err := s.DB.Exec(ctx, q, tokenHash, userID, expiresAt)
	return err
}

// ConsumeEmailVerification marks the token used and flips the user's
// email_verified_at in one transaction. Expired, unknown and already
// used tokens all come back as ErrNotFound.
func (s Store) ConsumeEmailVerification(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	err = tx.QueryRow(ctx, `
UPDATE email_verifications
SET used_at = $2
WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
RETURNING user_id::text;
`, tokenHash, now).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET email_verified_at = $2 WHERE id = $1::uuid AND email_verified_at IS NULL;`,
		userID, now); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return userID, nil
}

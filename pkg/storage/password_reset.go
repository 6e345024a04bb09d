package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

// UpsertPasswordReset stores the reset for a user, replacing any earlier one.
func (s *Session) UpsertPasswordReset(ctx context.Context, reset models.PasswordReset) (err error) {
	ctx, done := s.op(ctx, "UpsertPasswordReset")
	defer func() { done(err) }()

	_, err = s.exec(ctx, `
		INSERT INTO password_reset (user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = excluded.token_hash,
		    expires_at = excluded.expires_at,
		    created_at = excluded.created_at`,
		reset.UserID, reset.TokenHash, reset.ExpiresAt.UTC(), reset.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store password reset: %w", err)
	}
	return nil
}

// ClaimPasswordReset deletes the reset with the given token hash and
// returns it. Of several concurrent claims on one token only the one whose
// delete removes the row succeeds; the others get ErrNotFound. Expired rows
// are claimed too, the caller checks the expiry.
func (s *Session) ClaimPasswordReset(ctx context.Context, tokenHash string) (reset *models.PasswordReset, err error) {
	ctx, done := s.op(ctx, "ClaimPasswordReset")
	defer func() { done(err) }()

	reset = &models.PasswordReset{}
	err = s.getOne(ctx, reset,
		`SELECT user_id, token_hash, expires_at, created_at FROM password_reset WHERE token_hash = ?`,
		tokenHash)
	if err != nil {
		return nil, err
	}

	n, err := s.exec(ctx, `DELETE FROM password_reset WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to claim password reset: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return reset, nil
}

// PurgeExpiredPasswordResets deletes every reset that expired before now and
// returns how many were removed.
func (s *Session) PurgeExpiredPasswordResets(ctx context.Context, now time.Time) (n int64, err error) {
	ctx, done := s.op(ctx, "PurgeExpiredPasswordResets")
	defer func() { done(err) }()

	n, err = s.exec(ctx, `DELETE FROM password_reset WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge password resets: %w", err)
	}
	return n, nil
}

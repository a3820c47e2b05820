package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PasswordResetRepository struct {
	db *DB
}

func NewPasswordResetRepository(db *DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a reset token hash. Outstanding tokens for the same user are
// discarded so only the newest link works.
func (r *PasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	id, err := GenerateID("pwr")
	if err != nil {
		return fmt.Errorf("generating reset ID: %w", err)
	}

	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE user_id = ? AND used_at IS NULL`, userID); err != nil {
			return fmt.Errorf("discarding previous resets: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, userID, tokenHash, expiresAt.UTC(), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("creating password reset: %w", err)
		}
		return nil
	})
}

// Redeem consumes an unused, unexpired token, stores passwordHash for its
// owner and revokes every session of that user. All three writes share one
// transaction; a failed redeem leaves the token unused.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenHash, passwordHash string) (string, error) {
	var userID string
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		err := tx.QueryRowContext(ctx,
			`UPDATE password_resets SET used_at = ?
			 WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?
			 RETURNING user_id`,
			now, tokenHash, now,
		).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("consuming password reset: %w", err)
		}

		if err := setPassword(ctx, tx, userID, passwordHash); err != nil {
			return err
		}
		_, err = revokeSessions(ctx, tx, userID, "")
		return err
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// DeleteExpired removes expired and already used tokens.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE expires_at <= ? OR used_at IS NOT NULL`,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired password resets: %w", err)
	}
	return result.RowsAffected()
}

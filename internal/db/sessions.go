package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"huddle/internal/models"
)

type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, user_agent, ip, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.UserAgent, s.IP, s.ExpiresAt.UTC(), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// FindValid returns the session if it exists, belongs to userID and has not
// expired.
func (r *SessionRepository) FindValid(ctx context.Context, id, userID string) (*models.Session, error) {
	var s models.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, user_agent, ip, expires_at, created_at FROM sessions
		 WHERE id = ? AND user_id = ? AND expires_at > ?`,
		id, userID, time.Now().UTC(),
	).Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return r.deleteWhere(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
}

func (r *SessionRepository) deleteWhere(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions: %w", err)
	}
	return result.RowsAffected()
}

// revokeSessions deletes the user's sessions inside tx. keepID, when
// non-empty, is spared.
func revokeSessions(ctx context.Context, tx *sql.Tx, userID, keepID string) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND id != ?`, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("revoking sessions: %w", err)
	}
	return result.RowsAffected()
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"huddle/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// DuplicateError names the column whose unique constraint rejected a write.
type DuplicateError struct {
	Column string
	Err    error
}

func (e *DuplicateError) Error() string {
	return "duplicate " + e.Column
}

func (e *DuplicateError) Unwrap() []error {
	return []error{ErrDuplicate, e.Err}
}

func duplicateOr(err error, format string) error {
	if IsUniqueConstraintError(err) {
		return &DuplicateError{Column: UniqueConstraintColumn(err), Err: err}
	}
	return fmt.Errorf(format+": %w", err)
}

const userColumns = `id, email, username, display_name, password_hash, bio, avatar_url, status, is_active, created_at, updated_at, last_seen_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

type CreateUserParams struct {
	Email        string
	Username     string
	DisplayName  string
	PasswordHash string
}

func (r *UserRepository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	id, err := GenerateID("usr")
	if err != nil {
		return nil, fmt.Errorf("generating user ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, display_name, password_hash, bio, status, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', ?, 1, ?, ?)`,
		id, p.Email, p.Username, p.DisplayName, p.PasswordHash, models.StatusOffline, now, now,
	)
	if err != nil {
		return nil, duplicateOr(err, "creating user")
	}

	return &models.User{
		ID:           id,
		Email:        p.Email,
		Username:     p.Username,
		DisplayName:  p.DisplayName,
		PasswordHash: p.PasswordHash,
		Status:       models.StatusOffline,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindActiveByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? AND is_active = 1`, id)
}

// FindActiveByEmail expects an already normalized email.
func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? AND is_active = 1`, email)
}

// EmailExists checks active and deactivated accounts alike.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username)
}

// UsernameTakenByOther ignores the row belonging to userID so a user can
// resubmit their own username.
func (r *UserRepository) UsernameTakenByOther(ctx context.Context, username, userID string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM users WHERE username = ? AND id != ?`, username, userID)
}

// DisplayNameTaken compares case-insensitively. An empty userID checks every row.
func (r *UserRepository) DisplayNameTaken(ctx context.Context, displayName, userID string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM users WHERE display_name = ? COLLATE NOCASE AND id != ?`, displayName, userID)
}

// ProfileUpdate holds optional profile fields; nil leaves a column unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Username    *string
	Bio         *string
	Status      *models.Status
}

func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.Username == nil && u.Bio == nil && u.Status == nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if u.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *u.DisplayName)
	}
	if u.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *u.Username)
	}
	if u.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *u.Bio)
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ? AND is_active = 1`,
		args...,
	)
	if err != nil {
		return duplicateOr(err, "updating profile")
	}
	return expectRow(result)
}

// UpdatePassword stores a new hash and revokes the user's sessions in the
// same transaction. keepSessionID, when set, stays valid.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash, keepSessionID string) (int64, error) {
	var revoked int64
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if err := setPassword(ctx, tx, id, passwordHash); err != nil {
			return err
		}
		n, err := revokeSessions(ctx, tx, id, keepSessionID)
		revoked = n
		return err
	})
	return revoked, err
}

func setPassword(ctx context.Context, tx *sql.Tx, userID, passwordHash string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		passwordHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return expectRow(result)
}

// MarkSignedIn records a successful sign-in: last seen now, status ONLINE.
func (r *UserRepository) MarkSignedIn(ctx context.Context, id string) (time.Time, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_seen_at = ?, status = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
		now, models.StatusOnline, now, id,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("marking user signed in: %w", err)
	}
	return now, expectRow(result)
}

// Deactivate soft-deletes the account and revokes all of its sessions in one
// transaction. The row and its unique values stay.
func (r *UserRepository) Deactivate(ctx context.Context, id string) (int64, error) {
	var revoked int64
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET is_active = 0, status = ?, updated_at = ? WHERE id = ? AND is_active = 1`,
			models.StatusOffline, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("deactivating user: %w", err)
		}
		if err := expectRow(result); err != nil {
			return err
		}
		revoked, err = revokeSessions(ctx, tx, id, "")
		return err
	})
	return revoked, err
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	var status string
	var lastSeenAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.DisplayName,
		&u.PasswordHash,
		&u.Bio,
		&u.AvatarURL,
		&status,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastSeenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.Status = models.Status(status)
	if lastSeenAt.Valid {
		u.LastSeenAt = &lastSeenAt.Time
	}

	return &u, nil
}

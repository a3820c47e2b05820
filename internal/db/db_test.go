package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"huddle/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func createTestUser(t *testing.T, users *UserRepository, email, username, displayName string) *models.User {
	t.Helper()

	user, err := users.Create(context.Background(), CreateUserParams{
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return user
}

func TestCreateUserReportsDuplicateColumn(t *testing.T) {
	users := NewUserRepository(openTestDB(t))
	createTestUser(t, users, "alice@example.com", "alice", "Alice")

	tests := []struct {
		name   string
		params CreateUserParams
		column string
	}{
		{"email", CreateUserParams{Email: "alice@example.com", Username: "other", DisplayName: "Other"}, "email"},
		{"username", CreateUserParams{Email: "b@example.com", Username: "alice", DisplayName: "Bee"}, "username"},
		{"display name ignores case", CreateUserParams{Email: "c@example.com", Username: "cee", DisplayName: "ALICE"}, "display_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Create(context.Background(), tt.params)
			if !errors.Is(err, ErrDuplicate) {
				t.Fatalf("Create() error = %v, want ErrDuplicate", err)
			}
			var dup *DuplicateError
			if !errors.As(err, &dup) {
				t.Fatalf("Create() error = %T, want *DuplicateError", err)
			}
			if dup.Column != tt.column {
				t.Fatalf("column = %q, want %q", dup.Column, tt.column)
			}
		})
	}
}

func TestFindActiveByEmailSkipsDeactivated(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestDB(t))
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")

	found, err := users.FindActiveByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindActiveByEmail() error = %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("ID = %q, want %q", found.ID, user.ID)
	}
	if found.Status != models.StatusOffline || !found.IsActive {
		t.Fatalf("status = %q active = %v, want OFFLINE active", found.Status, found.IsActive)
	}

	if _, err := users.Deactivate(ctx, user.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if _, err := users.FindActiveByEmail(ctx, "alice@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindActiveByEmail() error = %v, want ErrNotFound", err)
	}
	if _, err := users.Deactivate(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Deactivate() error = %v, want ErrNotFound", err)
	}

	exists, err := users.EmailExists(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("EmailExists() error = %v", err)
	}
	if !exists {
		t.Fatal("EmailExists() = false for deactivated account, want true")
	}
}

func TestUpdateProfileAndTakenChecks(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestDB(t))
	alice := createTestUser(t, users, "alice@example.com", "alice", "Alice")
	createTestUser(t, users, "bob@example.com", "bob", "Bob")

	taken, err := users.DisplayNameTaken(ctx, "alice", alice.ID)
	if err != nil {
		t.Fatalf("DisplayNameTaken() error = %v", err)
	}
	if taken {
		t.Fatal("DisplayNameTaken() = true for own name, want false")
	}
	taken, err = users.DisplayNameTaken(ctx, "BOB", alice.ID)
	if err != nil {
		t.Fatalf("DisplayNameTaken() error = %v", err)
	}
	if !taken {
		t.Fatal("DisplayNameTaken() = false for other user's name, want true")
	}

	taken, err = users.UsernameTakenByOther(ctx, "alice", alice.ID)
	if err != nil {
		t.Fatalf("UsernameTakenByOther() error = %v", err)
	}
	if taken {
		t.Fatal("UsernameTakenByOther() = true for own username, want false")
	}

	bio := "hello"
	status := models.StatusDoNotDisturb
	if err := users.UpdateProfile(ctx, alice.ID, ProfileUpdate{Bio: &bio, Status: &status}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	updated, err := users.FindByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if updated.Bio != "hello" || updated.Status != models.StatusDoNotDisturb {
		t.Fatalf("bio = %q status = %q, want hello DO_NOT_DISTURB", updated.Bio, updated.Status)
	}
	if updated.DisplayName != "Alice" {
		t.Fatalf("display name = %q, want unchanged %q", updated.DisplayName, "Alice")
	}

	bob := "bob"
	err = users.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: &bob})
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Column != "username" {
		t.Fatalf("UpdateProfile() error = %v, want duplicate username", err)
	}
}

func TestMarkSignedIn(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestDB(t))
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")

	if _, err := users.MarkSignedIn(ctx, user.ID); err != nil {
		t.Fatalf("MarkSignedIn() error = %v", err)
	}
	found, err := users.FindActiveByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindActiveByID() error = %v", err)
	}
	if found.Status != models.StatusOnline {
		t.Fatalf("status = %q, want %q", found.Status, models.StatusOnline)
	}
	if found.LastSeenAt == nil {
		t.Fatal("LastSeenAt = nil, want timestamp")
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := NewUserRepository(database)
	sessions := NewSessionRepository(database)
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")

	keep := &models.Session{ID: NewSessionID(), UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	other := &models.Session{ID: NewSessionID(), UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	expired := &models.Session{ID: NewSessionID(), UserID: user.ID, ExpiresAt: time.Now().Add(-time.Minute)}
	for _, s := range []*models.Session{keep, other, expired} {
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if _, err := sessions.FindValid(ctx, keep.ID, user.ID); err != nil {
		t.Fatalf("FindValid() error = %v", err)
	}
	if _, err := sessions.FindValid(ctx, keep.ID, "usr_other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindValid() for other user error = %v, want ErrNotFound", err)
	}
	if _, err := sessions.FindValid(ctx, expired.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindValid() for expired error = %v, want ErrNotFound", err)
	}

	n, err := sessions.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("DeleteExpired() = %d, want 1", n)
	}

	if err := sessions.Delete(ctx, keep.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := sessions.FindValid(ctx, keep.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindValid() after Delete error = %v, want ErrNotFound", err)
	}
}

func createTestSession(t *testing.T, sessions *SessionRepository, userID string, ttl time.Duration) *models.Session {
	t.Helper()

	s := &models.Session{ID: NewSessionID(), UserID: userID, ExpiresAt: time.Now().Add(ttl)}
	if err := sessions.Create(context.Background(), s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return s
}

func TestUpdatePasswordRevokesOtherSessions(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := NewUserRepository(database)
	sessions := NewSessionRepository(database)
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")
	keep := createTestSession(t, sessions, user.ID, time.Hour)
	drop := createTestSession(t, sessions, user.ID, time.Hour)

	revoked, err := users.UpdatePassword(ctx, user.ID, "new-hash", keep.ID)
	if err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	if revoked != 1 {
		t.Fatalf("UpdatePassword() revoked = %d, want 1", revoked)
	}
	if _, err := sessions.FindValid(ctx, keep.ID, user.ID); err != nil {
		t.Fatalf("FindValid(kept) error = %v", err)
	}
	if _, err := sessions.FindValid(ctx, drop.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindValid(dropped) error = %v, want ErrNotFound", err)
	}

	found, err := users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.PasswordHash != "new-hash" {
		t.Fatalf("password hash = %q, want %q", found.PasswordHash, "new-hash")
	}
}

func TestDeactivateRevokesSessions(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := NewUserRepository(database)
	sessions := NewSessionRepository(database)
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")
	first := createTestSession(t, sessions, user.ID, time.Hour)
	second := createTestSession(t, sessions, user.ID, time.Hour)

	revoked, err := users.Deactivate(ctx, user.ID)
	if err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if revoked != 2 {
		t.Fatalf("Deactivate() revoked = %d, want 2", revoked)
	}
	for _, s := range []*models.Session{first, second} {
		if _, err := sessions.FindValid(ctx, s.ID, user.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("FindValid(%s) error = %v, want ErrNotFound", s.ID, err)
		}
	}
}

func TestDeactivateMissingUserLeavesSessions(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := NewUserRepository(database)
	sessions := NewSessionRepository(database)
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")
	if _, err := users.Deactivate(ctx, user.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	// Sessions are revoked only when the deactivation itself applies.
	late := createTestSession(t, sessions, user.ID, time.Hour)

	if _, err := users.Deactivate(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Deactivate() error = %v, want ErrNotFound", err)
	}
	if _, err := sessions.FindValid(ctx, late.ID, user.ID); err != nil {
		t.Fatalf("FindValid() error = %v, want session kept after rollback", err)
	}
}

func TestPasswordResetRedeemedOnce(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := NewUserRepository(database)
	sessions := NewSessionRepository(database)
	resets := NewPasswordResetRepository(database)
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")
	session := createTestSession(t, sessions, user.ID, time.Hour)

	if err := resets.Create(ctx, user.ID, "old-hash", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := resets.Create(ctx, user.ID, "new-hash", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := resets.Redeem(ctx, "old-hash", "pw"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Redeem(old) error = %v, want ErrNotFound", err)
	}

	userID, err := resets.Redeem(ctx, "new-hash", "pw-hash")
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if userID != user.ID {
		t.Fatalf("userID = %q, want %q", userID, user.ID)
	}
	if _, err := resets.Redeem(ctx, "new-hash", "pw-hash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Redeem() error = %v, want ErrNotFound", err)
	}

	found, err := users.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.PasswordHash != "pw-hash" {
		t.Fatalf("password hash = %q, want %q", found.PasswordHash, "pw-hash")
	}
	if _, err := sessions.FindValid(ctx, session.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindValid() error = %v, want ErrNotFound after reset", err)
	}

	if err := resets.Create(ctx, user.ID, "stale-hash", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := resets.Redeem(ctx, "stale-hash", "pw"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Redeem(expired) error = %v, want ErrNotFound", err)
	}

	n, err := resets.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("DeleteExpired() = %d, want 2", n)
	}
}

func TestPasswordResetRedeemRollsBackWhenPasswordUpdateFails(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := NewUserRepository(database)
	resets := NewPasswordResetRepository(database)
	user := createTestUser(t, users, "alice@example.com", "alice", "Alice")

	if err := resets.Create(ctx, user.ID, "token-hash", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// The password update matches no active row, so the redeem fails after
	// the token update already ran inside the transaction.
	if _, err := database.ExecContext(ctx, `UPDATE users SET is_active = 0 WHERE id = ?`, user.ID); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	if _, err := resets.Redeem(ctx, "token-hash", "pw-hash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Redeem() error = %v, want ErrNotFound", err)
	}

	var used sql.NullTime
	if err := database.QueryRowContext(ctx,
		`SELECT used_at FROM password_resets WHERE token_hash = ?`, "token-hash",
	).Scan(&used); err != nil {
		t.Fatalf("querying reset: %v", err)
	}
	if used.Valid {
		t.Fatal("used_at set after failed redeem, want token left unused")
	}
}

func TestUniqueConstraintColumnIgnoresOtherErrors(t *testing.T) {
	if got := UniqueConstraintColumn(errors.New("UNIQUE constraint failed: users.email")); got != "" {
		t.Fatalf("UniqueConstraintColumn() = %q, want empty for non-sqlite error", got)
	}
}

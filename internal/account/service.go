// Package account implements registration, sign-in, session lifecycle,
// profile management, password changes, deactivation and password reset.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"huddle/internal/auth"
	"huddle/internal/constants"
	"huddle/internal/db"
	"huddle/internal/models"
)

const DefaultPasswordResetTTL = 1 * time.Hour

// mailDeliveryTimeout bounds a reset mail that outlives its request.
const mailDeliveryTimeout = 30 * time.Second

type UserStore interface {
	auth.UsernameChecker
	Create(ctx context.Context, p db.CreateUserParams) (*models.User, error)
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameTakenByOther(ctx context.Context, username, userID string) (bool, error)
	DisplayNameTaken(ctx context.Context, displayName, userID string) (bool, error)
	UpdateProfile(ctx context.Context, id string, u db.ProfileUpdate) error
	UpdatePassword(ctx context.Context, id, passwordHash, keepSessionID string) (int64, error)
	MarkSignedIn(ctx context.Context, id string) (time.Time, error)
	Deactivate(ctx context.Context, id string) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	FindValid(ctx context.Context, id, userID string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type PasswordResetStore interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	Redeem(ctx context.Context, tokenHash, passwordHash string) (string, error)
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token string, ttl time.Duration) error
}

type Service struct {
	users    UserStore
	sessions SessionStore
	resets   PasswordResetStore
	issuer   *auth.SessionIssuer
	mailer   Mailer
	resetTTL time.Duration

	deliveries sync.WaitGroup
}

func NewService(users UserStore, sessions SessionStore, resets PasswordResetStore, issuer *auth.SessionIssuer, mailer Mailer, resetTTL time.Duration) *Service {
	if resetTTL <= 0 {
		resetTTL = DefaultPasswordResetTTL
	}
	return &Service{
		users:    users,
		sessions: sessions,
		resets:   resets,
		issuer:   issuer,
		mailer:   mailer,
		resetTTL: resetTTL,
	}
}

// NormalizeEmail lower-cases and trims an address before any lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Wait blocks until every queued password reset mail has been attempted.
func (s *Service) Wait() {
	s.deliveries.Wait()
}

// NormalizeDisplayName trims and collapses internal whitespace so names that
// differ only in spacing collide.
func NormalizeDisplayName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func checkDisplayName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < constants.DisplayNameMinLength || n > constants.DisplayNameMaxLength {
		return validationError("displayName", constants.ErrCodeValidation, "Display name must be 2 to 50 characters")
	}
	return nil
}

type RegisterInput struct {
	Email           string
	DisplayName     string
	Password        string
	ConfirmPassword string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	displayName := NormalizeDisplayName(in.DisplayName)

	if err := checkDisplayName(displayName); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, validationError("confirmPassword", constants.ErrCodeValidation, "Passwords do not match")
	}
	if err := checkStrength(in.Password, "password"); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, internalError("checking email", err)
	}
	if exists {
		return nil, conflictError("email", "An account with this email already exists")
	}

	taken, err := s.users.DisplayNameTaken(ctx, displayName, "")
	if err != nil {
		return nil, internalError("checking display name", err)
	}
	if taken {
		return nil, conflictError("displayName", "This display name is already taken")
	}

	username, err := auth.GenerateUsername(ctx, displayName, s.users)
	if err != nil {
		return nil, internalError("generating username", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, internalError("hashing password", err)
	}

	user, err := s.users.Create(ctx, db.CreateUserParams{
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
	})
	if err != nil {
		if conflict := duplicateConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, internalError("creating user", err)
	}

	slog.Info("user registered", "component", "account", "user_id", user.ID)
	return user, nil
}

// SessionMeta describes the client a session is issued to.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// SignIn is the outcome of a successful authentication or refresh.
type SignIn struct {
	Token     string
	Claims    *auth.SessionClaims
	ExpiresAt time.Time
	User      *models.User
}

// Authenticate checks credentials and opens a session. Every failure mode
// returns the same invalid-credentials error.
func (s *Service) Authenticate(ctx context.Context, email, password string, meta SessionMeta) (*SignIn, error) {
	user, err := s.users.FindActiveByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		auth.EqualizeTiming(password)
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, internalError("loading user", err)
	}

	if !auth.ValidatePassword(password, user.PasswordHash) {
		return nil, invalidCredentials()
	}

	lastSeen, err := s.users.MarkSignedIn(ctx, user.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, internalError("recording sign-in", err)
	}
	user.LastSeenAt = &lastSeen
	user.Status = models.StatusOnline

	session := &models.Session{
		ID:        db.NewSessionID(),
		UserID:    user.ID,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		ExpiresAt: s.issuer.ExpiresAt(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, internalError("creating session", err)
	}

	return s.issue(user, session.ID, session.ExpiresAt)
}

// ValidateSession verifies a token and confirms its session row still
// exists. The user row is not loaded.
func (s *Service) ValidateSession(ctx context.Context, token string) (*auth.SessionClaims, error) {
	claims, err := s.issuer.Parse(token)
	if errors.Is(err, auth.ErrSessionExpired) {
		return nil, unauthenticated(constants.ErrCodeSessionExpired, "Session expired", err)
	}
	if err != nil {
		return nil, unauthenticated(constants.ErrCodeUnauthorized, "Authentication required", err)
	}

	if _, err := s.sessions.FindValid(ctx, claims.SessionID(), claims.UserID()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, unauthenticated(constants.ErrCodeUnauthorized, "Authentication required", ErrSessionRevoked)
		}
		return nil, internalError("loading session", err)
	}
	return claims, nil
}

// RefreshSession re-snapshots the user's display fields into a new token for
// the same session. The original expiry is kept.
func (s *Service) RefreshSession(ctx context.Context, claims *auth.SessionClaims) (*SignIn, error) {
	user, err := s.users.FindActiveByID(ctx, claims.UserID())
	if errors.Is(err, db.ErrNotFound) {
		return nil, unauthenticated(constants.ErrCodeUnauthorized, "Authentication required", err)
	}
	if err != nil {
		return nil, internalError("loading user", err)
	}
	return s.issue(user, claims.SessionID(), claims.ExpiresAt.Time)
}

func (s *Service) SignOut(ctx context.Context, claims *auth.SessionClaims) error {
	if err := s.sessions.Delete(ctx, claims.SessionID()); err != nil {
		return internalError("deleting session", err)
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindActiveByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFoundError("User not found")
	}
	if err != nil {
		return nil, internalError("loading user", err)
	}
	return user, nil
}

// ProfileInput fields are independently optional; nil means unchanged.
type ProfileInput struct {
	DisplayName *string
	Username    *string
	Bio         *string
	Status      *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	var update db.ProfileUpdate

	if in.DisplayName != nil {
		name := NormalizeDisplayName(*in.DisplayName)
		if err := checkDisplayName(name); err != nil {
			return nil, err
		}
		taken, err := s.users.DisplayNameTaken(ctx, name, userID)
		if err != nil {
			return nil, internalError("checking display name", err)
		}
		if taken {
			return nil, conflictError("displayName", "This display name is already taken")
		}
		update.DisplayName = &name
	}

	if in.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*in.Username))
		taken, err := s.users.UsernameTakenByOther(ctx, username, userID)
		if err != nil {
			return nil, internalError("checking username", err)
		}
		if taken {
			return nil, conflictError("username", "This username is already taken")
		}
		update.Username = &username
	}

	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > constants.BioMaxLength {
			return nil, validationError("bio", constants.ErrCodeValidation, "Bio must be at most 500 characters")
		}
		update.Bio = &bio
	}

	if in.Status != nil {
		status := models.Status(*in.Status)
		if !status.Valid() {
			return nil, validationError("status", constants.ErrCodeValidation, "Invalid status")
		}
		update.Status = &status
	}

	if !update.Empty() {
		if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, notFoundError("User not found")
			}
			if conflict := duplicateConflict(err); conflict != nil {
				return nil, conflict
			}
			return nil, internalError("updating profile", err)
		}
	}

	return s.Profile(ctx, userID)
}

// VerifyPassword confirms the signed-in user's current password.
func (s *Service) VerifyPassword(ctx context.Context, userID, password string) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.ValidatePassword(password, user.PasswordHash) {
		return validationError("password", constants.ErrCodeInvalidCredentials, "Incorrect password")
	}
	return nil
}

// ChangePassword stores a new hash and revokes every other session of the
// user. The caller's session stays valid.
func (s *Service) ChangePassword(ctx context.Context, claims *auth.SessionClaims, newPassword string) error {
	if err := checkStrength(newPassword, "newPassword"); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return internalError("hashing password", err)
	}

	revoked, err := s.users.UpdatePassword(ctx, claims.UserID(), hash, claims.SessionID())
	if errors.Is(err, db.ErrNotFound) {
		return notFoundError("User not found")
	}
	if err != nil {
		return internalError("updating password", err)
	}

	slog.Info("password changed", "component", "account", "user_id", claims.UserID(), "revoked_sessions", revoked)
	return nil
}

// Deactivate soft-deletes the account after re-checking the password and
// revokes all of its sessions.
func (s *Service) Deactivate(ctx context.Context, userID, password string) error {
	if err := s.VerifyPassword(ctx, userID, password); err != nil {
		return err
	}

	revoked, err := s.users.Deactivate(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return notFoundError("User not found")
	}
	if err != nil {
		return internalError("deactivating user", err)
	}

	slog.Info("account deactivated", "component", "account", "user_id", userID, "revoked_sessions", revoked)
	return nil
}

// RequestPasswordReset never reports whether the email belongs to an account.
// The mail is sent in the background so response time does not depend on
// delivery; failures are logged only.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	address := NormalizeEmail(email)
	user, err := s.users.FindActiveByEmail(ctx, address)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return internalError("loading user", err)
	}

	token, err := auth.GenerateToken(auth.DefaultTokenLength)
	if err != nil {
		return internalError("generating reset token", err)
	}

	if err := s.resets.Create(ctx, user.ID, auth.HashToken(token), time.Now().Add(s.resetTTL)); err != nil {
		return internalError("storing reset token", err)
	}

	if s.mailer == nil {
		slog.Warn("no mailer configured, password reset not delivered", "component", "account", "user_id", user.ID)
		return nil
	}

	mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailDeliveryTimeout)
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		defer cancel()
		if err := s.mailer.SendPasswordReset(mailCtx, user.Email, token, s.resetTTL); err != nil {
			slog.Error("error sending password reset email", "component", "account", "user_id", user.ID, "error", err)
		}
	}()
	return nil
}

// ResetPassword redeems a reset token: the new hash is stored and all
// sessions of the user are revoked atomically with consuming the token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := checkStrength(newPassword, "newPassword"); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return internalError("hashing password", err)
	}

	userID, err := s.resets.Redeem(ctx, auth.HashToken(token), hash)
	if errors.Is(err, db.ErrNotFound) {
		return invalidResetToken()
	}
	if err != nil {
		return internalError("redeeming reset token", err)
	}

	slog.Info("password reset", "component", "account", "user_id", userID)
	return nil
}

func (s *Service) issue(user *models.User, sessionID string, expiresAt time.Time) (*SignIn, error) {
	token, claims, err := s.issuer.Issue(user, sessionID, expiresAt)
	if err != nil {
		return nil, internalError("issuing session", err)
	}
	return &SignIn{Token: token, Claims: claims, ExpiresAt: expiresAt, User: user}, nil
}

func checkStrength(password, field string) error {
	result := auth.ValidatePasswordStrength(password)
	if result.Valid {
		return nil
	}
	return &Error{
		Kind:    KindValidation,
		Code:    constants.ErrCodeWeakPassword,
		Message: "Password does not meet requirements",
		Field:   field,
		Details: result.Errors,
	}
}

func invalidResetToken() *Error {
	return validationError("token", constants.ErrCodeInvalidResetToken, "Reset token is invalid or has expired")
}

var duplicateFields = map[string]string{
	"email":        "email",
	"username":     "username",
	"display_name": "displayName",
}

var duplicateMessages = map[string]string{
	"email":       "An account with this email already exists",
	"username":    "This username is already taken",
	"displayName": "This display name is already taken",
}

// duplicateConflict turns a unique constraint violation into a conflict
// tagged with the offending field, or returns nil.
func duplicateConflict(err error) *Error {
	var dup *db.DuplicateError
	if !errors.As(err, &dup) {
		return nil
	}
	field, ok := duplicateFields[dup.Column]
	if !ok {
		return nil
	}
	conflict := conflictError(field, duplicateMessages[field])
	conflict.Err = err
	return conflict
}

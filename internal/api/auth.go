package api

import (
	"context"
	"net/http"
	"strings"

	"huddle/internal/account"
	"huddle/internal/auth"
	"huddle/internal/models"
	"huddle/internal/sanitize"
)

// AccountService is the business layer behind the account endpoints.
type AccountService interface {
	SessionValidator
	Register(ctx context.Context, in account.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string, meta account.SessionMeta) (*account.SignIn, error)
	RefreshSession(ctx context.Context, claims *auth.SessionClaims) (*account.SignIn, error)
	SignOut(ctx context.Context, claims *auth.SessionClaims) error
	Profile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, in account.ProfileInput) (*models.User, error)
	VerifyPassword(ctx context.Context, userID, password string) error
	ChangePassword(ctx context.Context, claims *auth.SessionClaims, newPassword string) error
	Deactivate(ctx context.Context, userID, password string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AuthHandler struct {
	accounts AccountService
	issuer   *auth.SessionIssuer
	ips      *ClientIPResolver
}

func NewAuthHandler(accounts AccountService, issuer *auth.SessionIssuer, ips *ClientIPResolver) *AuthHandler {
	return &AuthHandler{accounts: accounts, issuer: issuer, ips: ips}
}

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	DisplayName     string `json:"displayName" validate:"required,min=2,max=50"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (req *RegisterRequest) sanitize() {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = account.NormalizeDisplayName(sanitize.Input(req.DisplayName))
}

// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Email:           req.Email,
		DisplayName:     req.DisplayName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeAccountError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, userResponseFromModel(user))
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	signIn, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password, account.SessionMeta{
		UserAgent: r.UserAgent(),
		IP:        h.ips.Resolve(r),
	})
	if err != nil {
		writeAccountError(w, r, err)
		return
	}

	http.SetCookie(w, h.issuer.Cookie(signIn.Token, signIn.ExpiresAt))
	writeData(w, http.StatusOK, sessionResponseFromSignIn(signIn))
}

// POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r)
	if claims == nil {
		unauthorized(w, "Authentication required")
		return
	}

	if err := h.accounts.SignOut(r.Context(), claims); err != nil {
		writeAccountError(w, r, err)
		return
	}

	http.SetCookie(w, h.issuer.ClearCookie())
	writeMessage(w, "Signed out")
}

// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r)
	if claims == nil {
		unauthorized(w, "Authentication required")
		return
	}
	writeData(w, http.StatusOK, sessionResponseFromClaims(claims))
}

// POST /api/auth/session/refresh
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r)
	if claims == nil {
		unauthorized(w, "Authentication required")
		return
	}

	signIn, err := h.accounts.RefreshSession(r.Context(), claims)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}

	http.SetCookie(w, h.issuer.Cookie(signIn.Token, signIn.ExpiresAt))
	writeData(w, http.StatusOK, sessionResponseFromSignIn(signIn))
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/verify-password
func (h *AuthHandler) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	var req PasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	if err := h.accounts.VerifyPassword(r.Context(), userID, req.Password); err != nil {
		writeAccountError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, map[string]bool{"valid": true})
}

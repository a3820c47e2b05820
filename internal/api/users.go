package api

import (
	"net/http"

	"huddle/internal/account"
	"huddle/internal/sanitize"
)

type UserHandler struct {
	accounts AccountService
	issuer   cookieClearer
}

type cookieClearer interface {
	ClearCookie() *http.Cookie
}

func NewUserHandler(accounts AccountService, issuer cookieClearer) *UserHandler {
	return &UserHandler{accounts: accounts, issuer: issuer}
}

// GET /api/user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeAccountError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, userResponseFromModel(user))
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitnil,min=2,max=50"`
	Username    *string `json:"username" validate:"omitnil,min=1,max=32,alphanum"`
	Bio         *string `json:"bio" validate:"omitnil,max=500"`
	Status      *string `json:"status" validate:"omitnil,oneof=ONLINE IDLE DO_NOT_DISTURB INVISIBLE OFFLINE"`
}

func (req *UpdateProfileRequest) sanitize() {
	if req.DisplayName != nil {
		name := account.NormalizeDisplayName(sanitize.Input(*req.DisplayName))
		req.DisplayName = &name
	}
	sanitizeOptional(req.Username)
	sanitizeOptional(req.Bio)
}

// PATCH /api/user/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == "" {
		unauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), userID, account.ProfileInput{
		DisplayName: req.DisplayName,
		Username:    req.Username,
		Bio:         req.Bio,
		Status:      req.Status,
	})
	if err != nil {
		writeAccountError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, userResponseFromModel(user))
}

// DELETE /api/user/profile
func (h *UserHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
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

	if err := h.accounts.Deactivate(r.Context(), userID, req.Password); err != nil {
		writeAccountError(w, r, err)
		return
	}

	http.SetCookie(w, h.issuer.ClearCookie())
	writeMessage(w, "Account deactivated")
}

type ChangePasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

// PATCH /api/user/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r)
	if claims == nil {
		unauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), claims, req.NewPassword); err != nil {
		writeAccountError(w, r, err)
		return
	}

	writeMessage(w, "Password updated")
}

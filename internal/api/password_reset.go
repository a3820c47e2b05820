package api

import (
	"net/http"
	"strings"
)

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (req *PasswordResetRequest) sanitize() {
	req.Email = strings.TrimSpace(req.Email)
}

// POST /api/auth/password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeAccountError(w, r, err)
		return
	}

	writeMessage(w, "If an account exists with this email, a reset link has been sent")
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required,max=128"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (req *PasswordResetConfirmRequest) sanitize() {
	req.Token = strings.TrimSpace(req.Token)
}

// POST /api/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeAccountError(w, r, err)
		return
	}

	writeMessage(w, "Password has been reset")
}

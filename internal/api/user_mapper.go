package api

import (
	"time"

	"huddle/internal/account"
	"huddle/internal/auth"
	"huddle/internal/models"
)

// UserResponse is the public view of an account. The password hash never
// appears here.
type UserResponse struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
	Bio         string        `json:"bio"`
	AvatarURL   *string       `json:"avatarUrl"`
	Status      models.Status `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	LastSeenAt  *time.Time    `json:"lastSeenAt"`
}

func userResponseFromModel(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarURL:   u.AvatarURL,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastSeenAt:  u.LastSeenAt,
	}
}

type SessionUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"name"`
	Username    string  `json:"username"`
	AvatarURL   *string `json:"avatarUrl"`
	Bio         string  `json:"bio"`
	Status      string  `json:"status"`
}

// SessionResponse mirrors the token claims; it is a snapshot taken at sign-in
// or refresh.
type SessionResponse struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
	Token   string      `json:"token,omitempty"`
}

func sessionResponseFromClaims(claims *auth.SessionClaims) SessionResponse {
	var avatar *string
	if claims.AvatarURL != "" {
		avatar = &claims.AvatarURL
	}
	resp := SessionResponse{
		User: SessionUser{
			ID:          claims.UserID(),
			Email:       claims.Email,
			DisplayName: claims.Name,
			Username:    claims.Username,
			AvatarURL:   avatar,
			Bio:         claims.Bio,
			Status:      claims.Status,
		},
	}
	if claims.ExpiresAt != nil {
		resp.Expires = claims.ExpiresAt.Time.UTC()
	}
	return resp
}

func sessionResponseFromSignIn(s *account.SignIn) SessionResponse {
	resp := sessionResponseFromClaims(s.Claims)
	resp.Token = s.Token
	return resp
}

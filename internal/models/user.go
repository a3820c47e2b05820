package models

import "time"

type Status string

const (
	StatusOnline       Status = "ONLINE"
	StatusIdle         Status = "IDLE"
	StatusDoNotDisturb Status = "DO_NOT_DISTURB"
	StatusInvisible    Status = "INVISIBLE"
	StatusOffline      Status = "OFFLINE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDoNotDisturb, StatusInvisible, StatusOffline:
		return true
	}
	return false
}

// User is the persisted account row. PasswordHash never leaves the server.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"displayName"`
	PasswordHash string     `json:"-"`
	Bio          string     `json:"bio"`
	AvatarURL    *string    `json:"avatarUrl,omitempty"`
	Status       Status     `json:"status"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastSeenAt   *time.Time `json:"lastSeenAt,omitempty"`
}

func (u *User) GetAvatarURL() string {
	if u.AvatarURL != nil {
		return *u.AvatarURL
	}
	return ""
}

type Session struct {
	ID        string
	UserID    string
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

package domain

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile is the authorization record keyed by user id.
type Profile struct {
	ID        string `json:"id"`
	IsAdmin   bool   `json:"is_admin"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "signed_in"
	SessionSignedOut SessionEventType = "signed_out"
)

type SessionEvent struct {
	Type   SessionEventType
	UserID string
	At     time.Time
}

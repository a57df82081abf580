package model

import "time"

// Session is the single source of truth for the authenticated state. A session
// without an access token is treated everywhere as "not authenticated".
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         User      `json:"user"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// LoginResponse mirrors POST /api/auth/login.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         User   `json:"user"`
}

// RefreshResponse mirrors POST /api/auth/refresh.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

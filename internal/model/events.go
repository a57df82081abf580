package model

import "time"

// Security-relevant event types recorded in the audit trail.
const (
	EventLoginSuccess         = "LOGIN_SUCCESS"
	EventLoginFailed          = "LOGIN_FAILED"
	EventLogout               = "LOGOUT"
	EventSessionExpired       = "SESSION_EXPIRED"
	EventSessionExtended      = "SESSION_EXTENDED"
	EventTokenRefreshFailed   = "TOKEN_REFRESH_FAILED"
	EventPasswordChanged      = "PASSWORD_CHANGED"
	EventPasswordChangeFailed = "PASSWORD_CHANGE_FAILED"
	EventPermissionDenied     = "PERMISSION_DENIED"
)

type SecurityEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	UserID    int       `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Details   string    `json:"details,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

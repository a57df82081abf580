package model

import "errors"

var (
	// Session related errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrSessionExpired   = errors.New("session expired")

	// Credential related errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

package model

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist or is hidden by row-level security.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when an operation requires a signed-in identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned by the auth provider on a rejected sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is returned when the stored refresh token can no longer be exchanged.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnknownCategory is returned for a category outside the known set.
	ErrUnknownCategory = errors.New("unknown category")
)

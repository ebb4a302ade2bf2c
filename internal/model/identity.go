package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthProvider is the remote authentication contract.
type AuthProvider interface {
	SignUp(ctx context.Context, params SignUpParams) (AuthSession, error)
	SignIn(ctx context.Context, email, password string) (AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (Identity, error)
	Refresh(ctx context.Context, refreshToken string) (AuthSession, error)
}

// Identity is a read-only copy of the backend user.
type Identity struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// DisplayName returns the full name, falling back to the email address.
func (i Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	default:
		return i.Email
	}
}

// AuthSession is what the backend returns on sign-up, sign-in and refresh.
// Access and refresh tokens may be empty after sign-up when email confirmation is required.
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         Identity
}

// HasTokens reports whether the session carries a usable access token.
func (s AuthSession) HasTokens() bool {
	return s.AccessToken != ""
}

// SignUpParams contains parameters to register a user.
type SignUpParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

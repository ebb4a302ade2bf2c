package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/model"
)

type Auth struct {
	provider model.AuthProvider
	profiles model.ProfileStore
	logger   *logger.Logger
}

func NewAuth(
	provider model.AuthProvider,
	profiles model.ProfileStore,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		provider: provider,
		profiles: profiles,
		logger:   logger,
	}
}

// SignUp registers a user. When the backend signs the user in right away the profile row is
// created and the client context is signed in; otherwise signedIn is false and the user has
// to confirm the email address first.
func (a *Auth) SignUp(ctx context.Context, cc *client.Context, params model.SignUpParams) (signedIn bool, err error) {
	a.logger.Debug("Auth service: starting user registration",
		"email", params.Email)

	s, err := a.provider.SignUp(ctx, params)
	if err != nil {
		a.logger.Info("Auth service: registration rejected",
			"email", params.Email,
			"error", err.Error())
		return false, fmt.Errorf("failed to sign up: %w", err)
	}

	if !s.HasTokens() {
		a.logger.Info("Auth service: user registered, awaiting confirmation",
			"user_id", s.User.ID)
		return false, nil
	}

	if err := cc.SignIn(ctx, s); err != nil {
		return false, fmt.Errorf("failed to sign in: %w", err)
	}

	authCtx, err := cc.Authorize(ctx)
	if err != nil {
		return true, err
	}
	profile := model.Profile{
		ID:        s.User.ID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
	}
	if err := a.profiles.Create(authCtx, profile); err != nil {
		// the backend may already create profiles on sign-up
		a.logger.Warn("Auth service: failed to create profile",
			"user_id", s.User.ID,
			"error", err.Error())
	}

	a.logger.Info("Auth service: user registered",
		"user_id", s.User.ID)
	return true, nil
}

// SignIn exchanges credentials for a backend session and signs the client context in.
func (a *Auth) SignIn(ctx context.Context, cc *client.Context, email, password string) (model.Identity, error) {
	s, err := a.provider.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			a.logger.Info("Auth service: invalid credentials",
				"email", email)
		} else {
			a.logger.Error("Auth service: sign in failed",
				"email", email,
				"error", err.Error())
		}
		return model.Identity{}, fmt.Errorf("failed to sign in: %w", err)
	}

	if err := cc.SignIn(ctx, s); err != nil {
		return model.Identity{}, fmt.Errorf("failed to sign in: %w", err)
	}

	a.logger.Info("Auth service: user signed in",
		"user_id", s.User.ID)
	return s.User, nil
}

// SignOut signs the client context out and revokes the backend session.
// A failed revocation is logged; the local session is gone either way.
func (a *Auth) SignOut(ctx context.Context, cc *client.Context) error {
	token, err := cc.SignOut(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	if err := a.provider.SignOut(ctx, token); err != nil {
		a.logger.Warn("Auth service: failed to revoke backend session",
			"error", err.Error())
	}
	return nil
}

package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/google/uuid"
)

// Auth implements model.AuthProvider over the GoTrue endpoints.
type Auth struct {
	client *Client
	now    func() time.Time
}

var _ model.AuthProvider = (*Auth)(nil)

// NewAuth creates an auth provider on client.
func NewAuth(client *Client) *Auth {
	return &Auth{client: client, now: time.Now}
}

type authResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userJSON `json:"user"`
}

type userJSON struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    timestamp      `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userJSON) identity() (model.Identity, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to parse user id: %w", err)
	}
	identity := model.Identity{
		ID:        id,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Time,
	}
	if s, ok := u.UserMetadata["first_name"].(string); ok {
		identity.FirstName = s
	}
	if s, ok := u.UserMetadata["last_name"].(string); ok {
		identity.LastName = s
	}
	return identity, nil
}

// SignUp registers a user with first and last name as user metadata.
// Projects that require email confirmation return no tokens.
func (a *Auth) SignUp(ctx context.Context, params model.SignUpParams) (model.AuthSession, error) {
	body := map[string]any{
		"email":    params.Email,
		"password": params.Password,
		"data": map[string]string{
			"first_name": params.FirstName,
			"last_name":  params.LastName,
		},
	}

	raw, err := a.post(ctx, "/auth/v1/signup", "", body)
	if err != nil {
		return model.AuthSession{}, err
	}

	// GoTrue answers with a bare user object when confirmation is pending.
	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.AuthSession{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.User == nil {
		var user userJSON
		if err := json.Unmarshal(raw, &user); err != nil {
			return model.AuthSession{}, fmt.Errorf("failed to unmarshal user: %w", err)
		}
		resp.User = &user
	}

	return a.session(resp)
}

// SignIn exchanges email and password for a session.
func (a *Auth) SignIn(ctx context.Context, email, password string) (model.AuthSession, error) {
	raw, err := a.post(ctx, "/auth/v1/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return model.AuthSession{}, err
	}

	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.AuthSession{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return a.session(resp)
}

// Refresh exchanges a refresh token for a new session.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (model.AuthSession, error) {
	raw, err := a.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return model.AuthSession{}, err
	}

	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.AuthSession{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return a.session(resp)
}

// SignOut revokes the session behind accessToken.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	_, err := a.post(ctx, "/auth/v1/logout", accessToken, nil)
	return err
}

// GetUser returns the identity behind accessToken.
func (a *Auth) GetUser(ctx context.Context, accessToken string) (model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.client.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to create request: %w", err)
	}
	a.client.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user userJSON
	if err := a.client.doJSON(req, &user); err != nil {
		return model.Identity{}, err
	}
	return user.identity()
}

func (a *Auth) post(ctx context.Context, path, accessToken string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	a.client.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := a.client.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *Auth) session(resp authResponse) (model.AuthSession, error) {
	session := model.AuthSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		session.ExpiresAt = a.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if resp.User != nil {
		identity, err := resp.User.identity()
		if err != nil {
			return model.AuthSession{}, err
		}
		session.User = identity
	}
	return session, nil
}

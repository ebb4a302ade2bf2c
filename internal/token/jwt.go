package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the claims of the browser session cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

// AccessClaims are the claims the backend puts into its access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey       string
	backendSecret   string
	unverifiedParse *jwt.Parser
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT creates a token manager. secretKey signs session cookies; backendSecret verifies
// backend access tokens and may be empty, in which case their claims are read unverified.
func NewJWT(secretKey, backendSecret string) *JWT {
	return &JWT{
		secretKey:       secretKey,
		backendSecret:   backendSecret,
		unverifiedParse: jwt.NewParser(),
	}
}

const typeSession = "session"

// IssueSessionToken signs a cookie value carrying the session ID.
func (j *JWT) IssueSessionToken(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: typeSession,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// ParseSessionToken validates a cookie value and returns its session ID.
func (j *JWT) ParseSessionToken(tokenString string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, hmacKey(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse session token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("session token is invalid")
	}
	if claims.TokenType != typeSession {
		return "", fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("session token has no id")
	}
	return claims.ID, nil
}

// ParseAccessToken reads the subject, email, role and expiry of a backend access token.
// An expired token still yields its claims together with jwt.ErrTokenExpired.
func (j *JWT) ParseAccessToken(tokenString string) (model.AccessClaims, error) {
	claims := &AccessClaims{}

	var err error
	if j.backendSecret != "" {
		_, err = jwt.ParseWithClaims(tokenString, claims, hmacKey(j.backendSecret))
	} else {
		_, _, err = j.unverifiedParse.ParseUnverified(tokenString, claims)
	}
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return model.AccessClaims{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	userID, parseErr := uuid.Parse(claims.Subject)
	if parseErr != nil {
		return model.AccessClaims{}, fmt.Errorf("failed to parse access token subject: %w", parseErr)
	}

	out := model.AccessClaims{
		UserID: userID,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	if err != nil {
		return out, fmt.Errorf("failed to parse access token: %w", err)
	}
	return out, nil
}

func hmacKey(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}
}

package middleware

import (
	"context"
	"net/http"

	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/service"
)

// ClientManager stores the resolved client context in the request context.
type ClientManager interface {
	SetClientToContext(ctx context.Context, client any) context.Context
	GetClientFromContext(ctx context.Context) (any, bool)
}

// Session resolves the browser session cookie to its client context.
// Requests without a valid cookie start a new session.
type Session struct {
	tokens     *service.TokenService
	registry   *client.Registry
	ctxManager ClientManager
	cookieName string
	secure     bool
	logger     *logger.Logger
}

func NewSession(
	tokens *service.TokenService,
	registry *client.Registry,
	ctxManager ClientManager,
	cookieName string,
	secure bool,
	logger *logger.Logger,
) *Session {
	return &Session{
		tokens:     tokens,
		registry:   registry,
		ctxManager: ctxManager,
		cookieName: cookieName,
		secure:     secure,
		logger:     logger,
	}
}

func (s *Session) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := s.sessionID(r)
		if !ok {
			id, token, err := s.tokens.Issue()
			if err != nil {
				s.logger.Error("Session middleware: failed to issue session", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			sessionID = id
			http.SetCookie(w, &http.Cookie{
				Name:     s.cookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(s.tokens.TTL().Seconds()),
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		cc := s.registry.Get(r.Context(), sessionID)
		ctx := s.ctxManager.SetClientToContext(r.Context(), cc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Session) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := s.tokens.SessionID(cookie.Value)
	if err != nil {
		s.logger.Debug("Session middleware: discarding invalid session cookie", "error", err)
		return "", false
	}
	return id, true
}

// ClientFrom returns the client context stored by the Session middleware.
func ClientFrom(ctx context.Context, m ClientManager) (*client.Context, bool) {
	v, ok := m.GetClientFromContext(ctx)
	if !ok {
		return nil, false
	}
	cc, ok := v.(*client.Context)
	return cc, ok
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtroode/flavourmarket/database"
	"github.com/dtroode/flavourmarket/internal/model"
)

const (
	roleAnon          = "anon"
	roleAuthenticated = "authenticated"
)

// Connection is a pool that runs every statement as the calling identity,
// the way the REST gateway does: with the caller's JWT claims and database role set for the transaction.
type Connection struct {
	*pgxpool.Pool
	tokens     model.TokenManager
	ctxManager model.ContextManager
}

// NewConnection opens a pool on dsn and, when migrate is set, applies the development schema.
func NewConnection(ctx context.Context, dsn string, migrate bool, tokens model.TokenManager, ctxManager model.ContextManager) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if migrate {
		if err := database.Migrate(ctx, dsn); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return &Connection{
		Pool:       pool,
		tokens:     tokens,
		ctxManager: ctxManager,
	}, nil
}

func (s *Connection) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return s.Pool.Ping(ctx)
}

type jwtClaims struct {
	Sub   string `json:"sub,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// callerClaims derives the request claims and role from the access token in ctx.
func (s *Connection) callerClaims(ctx context.Context) (jwtClaims, error) {
	token, ok := s.ctxManager.GetAccessTokenFromContext(ctx)
	if !ok {
		return jwtClaims{Role: roleAnon}, nil
	}

	claims, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		return jwtClaims{}, fmt.Errorf("%w: %w", model.ErrUnauthenticated, err)
	}

	return jwtClaims{
		Sub:   claims.UserID.String(),
		Email: claims.Email,
		Role:  roleAuthenticated,
	}, nil
}

// asCaller runs fn in a transaction scoped to the caller's claims and role.
func (s *Connection) asCaller(ctx context.Context, fn func(tx pgx.Tx) error) error {
	claims, err := s.callerClaims(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal claims: %w", err)
	}

	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('request.jwt.claims', $1, true)`, string(raw)); err != nil {
			return fmt.Errorf("failed to set request claims: %w", err)
		}
		if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+pgx.Identifier{claims.Role}.Sanitize()); err != nil {
			return fmt.Errorf("failed to set role: %w", err)
		}
		return fn(tx)
	})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

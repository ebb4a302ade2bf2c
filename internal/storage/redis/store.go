package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dtroode/flavourmarket/internal/model"
)

const keyPrefix = "flavourmarket:session:"

// Internal adapter interface to enable faking the server in tests.
type redisAPI interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ model.SessionStore = (*SessionStore)(nil)

// SessionStore keeps backend tokens in Redis so browser sessions survive restarts.
type SessionStore struct {
	api redisAPI
}

// NewSessionStore connects to Redis and checks the connection.
func NewSessionStore(ctx context.Context, addr, password string, db int) (*SessionStore, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewSessionStoreWithAPI(client), client, nil
}

// NewSessionStoreWithAPI allows injecting a fake API (used in tests).
func NewSessionStoreWithAPI(api redisAPI) *SessionStore {
	return &SessionStore{api: api}
}

func (s *SessionStore) Save(ctx context.Context, sessionID string, tokens model.SessionTokens, ttl time.Duration) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal session tokens: %w", err)
	}
	if err := s.api.Set(ctx, keyPrefix+sessionID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (model.SessionTokens, error) {
	raw, err := s.api.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.SessionTokens{}, model.ErrNotFound
	}
	if err != nil {
		return model.SessionTokens{}, fmt.Errorf("failed to get session: %w", err)
	}

	var tokens model.SessionTokens
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return model.SessionTokens{}, fmt.Errorf("failed to unmarshal session tokens: %w", err)
	}
	return tokens, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.api.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/flavourmarket/internal/model"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewSessionStore()
	store.now = func() time.Time { return now }

	tokens := model.SessionTokens{AccessToken: "a", RefreshToken: "r"}

	_, err := store.Get(ctx, "sid")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, store.Save(ctx, "sid", tokens, time.Minute))
	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, tokens, got)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "sid")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, store.Save(ctx, "forever", tokens, 0))
	now = now.Add(24 * time.Hour)
	_, err = store.Get(ctx, "forever")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "forever"))
	_, err = store.Get(ctx, "forever")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

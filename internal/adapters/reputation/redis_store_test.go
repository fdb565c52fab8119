package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreFromClient(client, zap.NewNop())
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := newRedisStore(t)

	_, err := store.Get(context.Background(), "nobody@nowhere.org")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRedisStoreSetGet(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	rep := &core.SenderReputation{
		Key:          "news@acme.com",
		Score:        0.8,
		Observations: 4,
		UpdatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Set(ctx, rep))

	got, err := store.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "news@acme.com", got.Key)
	assert.InDelta(t, 0.8, got.Score, 1e-9)
	assert.Equal(t, 4, got.Observations)
	assert.True(t, got.UpdatedAt.Equal(rep.UpdatedAt))
}

func TestRedisStoreNudge(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	rep, err := store.Nudge(ctx, "news@acme.com", 1.0, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, rep.Score, 1e-9)
	assert.Equal(t, 1, rep.Observations)

	rep, err = store.Nudge(ctx, "news@acme.com", 1.0, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.595, rep.Score, 1e-9)
	assert.Equal(t, 2, rep.Observations)

	// The nudged value is also visible through Get
	got, err := store.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	assert.InDelta(t, 0.595, got.Score, 1e-9)
}

func TestRedisStoreNudgeClamps(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &core.SenderReputation{
		Key:       "k",
		Score:     0.99,
		UpdatedAt: time.Now(),
	}))

	rep, err := store.Nudge(ctx, "k", 1.0, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rep.Score, 1e-9)

	rep, err = store.Nudge(ctx, "k", 0.0, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rep.Score, 1e-9)
}

package verification

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pendingRequest(id, userID, emailID, token string) *core.VerificationRequest {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &core.VerificationRequest{
		ID:          id,
		UserID:      userID,
		EmailID:     emailID,
		Sender:      "news@acme.com",
		Status:      core.StatusPending,
		GeneratedAt: now,
		ExpiresAt:   now.AddDate(0, 0, 7),
		Token:       token,
	}
}

func TestMemoryStoreCreateOrGetPending(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	first, created, err := store.CreateOrGetPending(ctx, pendingRequest("r1", "bob", "e1", "t1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "r1", first.ID)

	// Same user and email returns the existing request
	second, created, err := store.CreateOrGetPending(ctx, pendingRequest("r2", "bob", "e1", "t2"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "r1", second.ID)

	// A different email creates a new one
	third, created, err := store.CreateOrGetPending(ctx, pendingRequest("r3", "bob", "e2", "t3"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "r3", third.ID)
}

func TestMemoryStoreResolvedRequestDoesNotBlockNewOnes(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	first, _, err := store.CreateOrGetPending(ctx, pendingRequest("r1", "bob", "e1", "t1"))
	require.NoError(t, err)

	first.Status = core.StatusRejected
	require.NoError(t, store.Update(ctx, first))

	_, created, err := store.CreateOrGetPending(ctx, pendingRequest("r2", "bob", "e1", "t2"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestMemoryStoreGetByIDAndToken(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, _, err := store.CreateOrGetPending(ctx, pendingRequest("r1", "bob", "e1", "t1"))
	require.NoError(t, err)

	byID, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "t1", byID.Token)

	byToken, err := store.GetByToken(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "r1", byToken.ID)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = store.GetByToken(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	req, _, err := store.CreateOrGetPending(ctx, pendingRequest("r1", "bob", "e1", "t1"))
	require.NoError(t, err)

	req.Status = core.StatusConfirmed
	req.RequestSentCount = 2
	require.NoError(t, store.Update(ctx, req))

	got, err := store.GetByToken(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusConfirmed, got.Status)
	assert.Equal(t, 2, got.RequestSentCount)

	unknown := pendingRequest("missing", "bob", "e9", "t9")
	assert.ErrorIs(t, store.Update(ctx, unknown), core.ErrNotFound)
}

func TestMemoryStoreListExpiredPending(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	due, _, err := store.CreateOrGetPending(ctx, pendingRequest("r1", "bob", "e1", "t1"))
	require.NoError(t, err)
	_, _, err = store.CreateOrGetPending(ctx, pendingRequest("r2", "bob", "e2", "t2"))
	require.NoError(t, err)

	resolved, _, err := store.CreateOrGetPending(ctx, pendingRequest("r3", "bob", "e3", "t3"))
	require.NoError(t, err)
	resolved.Status = core.StatusConfirmed
	require.NoError(t, store.Update(ctx, resolved))

	// Only r1 is past due
	cutoff := due.ExpiresAt.Add(time.Hour)
	later := pendingRequest("r2", "bob", "e2", "t2")
	later.ExpiresAt = cutoff.Add(24 * time.Hour)
	require.NoError(t, store.Update(ctx, later))

	expired, err := store.ListExpiredPending(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "r1", expired[0].ID)
}

func TestMemoryStoreHasRequestForEmail(t *testing.T) {
	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	req, _, err := store.CreateOrGetPending(ctx, pendingRequest("r1", "bob", "e1", "t1"))
	require.NoError(t, err)

	exists, err := store.HasRequestForEmail(ctx, "bob", "e1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.HasRequestForEmail(ctx, "carol", "e1")
	require.NoError(t, err)
	assert.False(t, exists)

	// Resolved requests still count as asked
	req.Status = core.StatusExpired
	require.NoError(t, store.Update(ctx, req))
	exists, err = store.HasRequestForEmail(ctx, "bob", "e1")
	require.NoError(t, err)
	assert.True(t, exists)
}

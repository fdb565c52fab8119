package feedback

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()

	store := NewMemoryStore(zap.NewNop())
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, &core.FeedbackItem{
			ID:         fmt.Sprintf("f%d", i),
			UserID:     "bob@example.com",
			EmailID:    fmt.Sprintf("e%d", i),
			Sender:     "news@acme.com",
			Type:       core.FeedbackConfirm,
			Confidence: 0.2 * float64(i),
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.Save(ctx, &core.FeedbackItem{
		ID:        "other",
		UserID:    "carol@example.com",
		EmailID:   "e9",
		Sender:    "promo@shop.com",
		Type:      core.FeedbackReject,
		Timestamp: base.Add(10 * time.Hour),
	}))

	return store
}

func TestMemoryStoreGetForUserNewestFirst(t *testing.T) {
	store := seedStore(t)

	items, err := store.GetForUser(context.Background(), "bob@example.com")
	require.NoError(t, err)
	require.Len(t, items, 5)
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i-1].Timestamp.After(items[i].Timestamp))
	}
}

func TestMemoryStoreGetForEmailAndSender(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	byEmail, err := store.GetForEmail(ctx, "e2")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "f2", byEmail[0].ID)

	bySender, err := store.GetForSender(ctx, "news@acme.com")
	require.NoError(t, err)
	assert.Len(t, bySender, 5)
}

func TestMemoryStoreGetUnprocessedOldestFirst(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	items, err := store.GetUnprocessed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 6)
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i-1].Timestamp.Before(items[i].Timestamp))
	}

	limited, err := store.GetUnprocessed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "f0", limited[0].ID)
}

func TestMemoryStoreGetUncertain(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	// Confidences 0.0, 0.2, 0.4 fall below the threshold
	items, err := store.GetUncertain(ctx, 0.5, 0)
	require.NoError(t, err)
	assert.Len(t, items, 4) // includes the zero-confidence reject item

	ok, err := store.MarkProcessed(ctx, "f0")
	require.NoError(t, err)
	assert.True(t, ok)

	items, err = store.GetUncertain(ctx, 0.5, 0)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestMemoryStoreMarkProcessed(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	ok, err := store.MarkProcessed(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, ok)

	items, err := store.GetForEmail(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Processed)
	require.NotNil(t, items[0].ProcessedAt)

	// Unknown ids report false without error
	ok, err = store.MarkProcessed(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreListUserIDs(t *testing.T) {
	store := seedStore(t)

	users, err := store.ListUserIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, users)
}

package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/newsletter-filter/internal/adapters/reputation"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSenderAnalyzerUnknownSender(t *testing.T) {
	store := reputation.NewMemoryStore(zap.NewNop())
	a := NewSenderAnalyzer(store, zap.NewNop())

	got, err := a.Analyze(context.Background(), &core.Email{From: "stranger@nowhere.org"})
	require.NoError(t, err)

	assert.Equal(t, core.MethodSender, got.Method)
	assert.InDelta(t, 0.5, got.Score, 1e-9)
	assert.InDelta(t, 0.1, got.Confidence, 1e-9)
}

func TestSenderAnalyzerKnownSender(t *testing.T) {
	store := reputation.NewMemoryStore(zap.NewNop())
	require.NoError(t, store.Set(context.Background(), &core.SenderReputation{
		Key:          "news@acme.com",
		Score:        0.9,
		Observations: 12,
		UpdatedAt:    time.Now(),
	}))

	a := NewSenderAnalyzer(store, zap.NewNop())
	got, err := a.Analyze(context.Background(), &core.Email{From: "News@Acme.com"})
	require.NoError(t, err)

	assert.InDelta(t, 0.9, got.Score, 1e-9)
	assert.InDelta(t, 12.0/15.0, got.Confidence, 1e-9)
}

func TestSenderAnalyzerFallsBackToDomain(t *testing.T) {
	store := reputation.NewMemoryStore(zap.NewNop())
	require.NoError(t, store.Set(context.Background(), &core.SenderReputation{
		Key:          "acme.com",
		Score:        0.8,
		Observations: 3,
		UpdatedAt:    time.Now(),
	}))

	a := NewSenderAnalyzer(store, zap.NewNop())
	got, err := a.Analyze(context.Background(), &core.Email{From: "unseen@acme.com"})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, got.Score, 1e-9)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
	assert.Equal(t, "acme.com", got.Metadata["key"])
}

func TestReputationConfidenceBounds(t *testing.T) {
	assert.InDelta(t, 0.1, reputationConfidence(0), 1e-9)
	assert.InDelta(t, 0.25, reputationConfidence(1), 1e-9)
	assert.InDelta(t, 0.95, reputationConfidence(10000), 1e-9)
}

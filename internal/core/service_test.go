package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	feedbackstore "github.com/mikey/newsletter-filter/internal/adapters/feedback"
	"github.com/mikey/newsletter-filter/internal/adapters/reputation"
	"github.com/mikey/newsletter-filter/internal/analyzer"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	service       *core.DetectionService
	reputation    core.ReputationStore
	feedbackStore core.FeedbackStore
	now           time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	reputationStore := reputation.NewMemoryStore(logger)
	store := feedbackstore.NewMemoryStore(logger)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	analyzers := []core.Analyzer{
		analyzer.NewHeaderAnalyzer(logger),
		analyzer.NewContentAnalyzer(logger),
		analyzer.NewSenderAnalyzer(reputationStore, logger),
	}
	service := core.NewDetectionService(
		analyzers,
		analyzer.NewFeedbackAnalyzer(store, logger),
		analyzer.NewAggregator(0, 0),
		reputationStore,
		store,
		core.FixedClock{T: now},
		logger,
	)

	return &fixture{
		service:       service,
		reputation:    reputationStore,
		feedbackStore: store,
		now:           now,
	}
}

func newsletterEmail() *core.Email {
	return &core.Email{
		ID:      "email-1",
		From:    "news@updates.acme.com",
		To:      []string{"bob@example.com"},
		Subject: "Acme Weekly Roundup",
		Body: "Our weekly picks. unsubscribe here or view in browser. " +
			"<table role=\"presentation\"><tr><td>news</td></tr></table>",
		Headers: map[string][]string{
			"From":             {"Acme Weekly <news@updates.acme.com>"},
			"List-Unsubscribe": {"<https://updates.acme.com/u/1>"},
			"Precedence":       {"bulk"},
		},
	}
}

func personalEmail() *core.Email {
	return &core.Email{
		ID:      "email-2",
		From:    "alice@example.com",
		To:      []string{"bob@example.com"},
		Subject: "lunch tomorrow?",
		Body:    "Hey, are we still on for lunch tomorrow at noon?",
		Headers: map[string][]string{
			"From": {"Alice <alice@example.com>"},
		},
	}
}

// stubAnalyzer returns a fixed score so tests can drive the combined
// result to exact values
type stubAnalyzer struct {
	score core.DetectionScore
}

func (a stubAnalyzer) Analyze(ctx context.Context, email *core.Email) (*core.DetectionScore, error) {
	s := a.score
	return &s, nil
}

func (a stubAnalyzer) Method() core.DetectionMethod { return a.score.Method }

func (a stubAnalyzer) Weight() float64 { return analyzer.WeightHeader }

func TestDetectNewsletterObviousNewsletter(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.DetectNewsletter(context.Background(), newsletterEmail(), nil)
	require.NoError(t, err)

	assert.True(t, result.IsNewsletter)
	assert.Greater(t, result.CombinedScore, 0.6)
	assert.False(t, result.NeedsVerification)
	assert.Len(t, result.Scores, 4)
	assert.Equal(t, f.now, result.AnalyzedAt)

	// Canonical method ordering
	for i, method := range core.MethodOrder {
		assert.Equal(t, method, result.Scores[i].Method)
	}
}

func TestDetectNewsletterPersonalEmail(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.DetectNewsletter(context.Background(), personalEmail(), nil)
	require.NoError(t, err)

	assert.False(t, result.IsNewsletter)
	assert.Less(t, result.CombinedScore, 0.4)
	assert.False(t, result.NeedsVerification)
}

func TestDetectNewsletterBoundaryScore(t *testing.T) {
	logger := zap.NewNop()
	service := core.NewDetectionService(
		[]core.Analyzer{stubAnalyzer{score: core.DetectionScore{
			Method:     core.MethodHeader,
			Score:      0.5,
			Confidence: 0.9,
			Reason:     "pinned",
		}}},
		nil,
		analyzer.NewAggregator(0, 0),
		reputation.NewMemoryStore(logger),
		feedbackstore.NewMemoryStore(logger),
		core.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		logger,
	)

	result, err := service.DetectNewsletter(context.Background(), personalEmail(), nil)
	require.NoError(t, err)

	// A combined score of exactly 0.5 counts as a newsletter and still
	// sits inside the ambiguous band
	assert.Equal(t, 0.5, result.CombinedScore)
	assert.True(t, result.IsNewsletter)
	assert.True(t, result.NeedsVerification)
}

func TestDetectNewsletterFeedbackOverridesVerification(t *testing.T) {
	f := newFixture(t)

	uf := core.NewUserFeedback("bob@example.com")
	uf.ConfirmedSenders["news@updates.acme.com"] = true

	result, err := f.service.DetectNewsletter(context.Background(), newsletterEmail(), uf)
	require.NoError(t, err)

	assert.True(t, result.IsNewsletter)
	assert.False(t, result.NeedsVerification)

	var feedbackScore *core.DetectionScore
	for i := range result.Scores {
		if result.Scores[i].Method == core.MethodFeedback {
			feedbackScore = &result.Scores[i]
		}
	}
	require.NotNil(t, feedbackScore)
	assert.InDelta(t, 1.0, feedbackScore.Score, 1e-9)
	assert.Greater(t, feedbackScore.Confidence, core.FeedbackOverrideConfidence)
}

func TestGetConfidenceScoreSubset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	headerOnly, err := f.service.GetConfidenceScore(ctx, newsletterEmail(), []core.DetectionMethod{core.MethodHeader})
	require.NoError(t, err)

	// Header signals alone: 0.6 + 0.3 + 0.25 capped at 1.0
	assert.InDelta(t, 1.0, headerOnly, 1e-9)

	all, err := f.service.GetConfidenceScore(ctx, newsletterEmail(), nil)
	require.NoError(t, err)
	assert.Greater(t, all, 0.5)
	assert.Less(t, all, headerOnly)
}

func TestNeedsVerificationBand(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.service.NeedsVerification(0.4))
	assert.True(t, f.service.NeedsVerification(0.5))
	assert.False(t, f.service.NeedsVerification(0.6))
}

func TestRecordFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.service.RecordFeedback(ctx, newsletterEmail(), true, "bob@example.com")
	require.NoError(t, err)

	// Sender reputation moved toward 1.0 from neutral at rate 0.1
	rep, err := f.reputation.Get(ctx, "news@updates.acme.com")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, rep.Score, 1e-9)
	assert.Equal(t, 1, rep.Observations)

	// Domain moved at half the rate
	domainRep, err := f.reputation.Get(ctx, "updates.acme.com")
	require.NoError(t, err)
	assert.InDelta(t, 0.525, domainRep.Score, 1e-9)

	// The stored event is already processed so the improver skips it
	items, err := f.feedbackStore.GetForSender(ctx, "news@updates.acme.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, core.FeedbackConfirm, items[0].Type)
	assert.True(t, items[0].Processed)

	pending, err := f.feedbackStore.GetUnprocessed(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecordFeedbackReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.service.RecordFeedback(ctx, newsletterEmail(), false, "bob@example.com")
	require.NoError(t, err)

	rep, err := f.reputation.Get(ctx, "news@updates.acme.com")
	require.NoError(t, err)
	assert.InDelta(t, 0.45, rep.Score, 1e-9)

	items, err := f.feedbackStore.GetForSender(ctx, "news@updates.acme.com")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, core.FeedbackReject, items[0].Type)
}

func TestRecordedFeedbackInfluencesNextDetection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	email := personalEmail()
	first, err := f.service.DetectNewsletter(ctx, email, nil)
	require.NoError(t, err)

	// Three confirms build up sender history and reputation
	for i := 0; i < 3; i++ {
		require.NoError(t, f.service.RecordFeedback(ctx, email, true, "bob@example.com"))
	}

	second, err := f.service.DetectNewsletter(ctx, email, nil)
	require.NoError(t, err)
	assert.Greater(t, second.CombinedScore, first.CombinedScore)
}

func TestStorageErrorUnwraps(t *testing.T) {
	err := &core.StorageError{Op: "feedback save", Err: core.ErrNotFound}
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

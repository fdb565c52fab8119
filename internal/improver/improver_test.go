package improver

import (
	"context"
	"fmt"
	"testing"
	"time"

	feedbackstore "github.com/mikey/newsletter-filter/internal/adapters/feedback"
	"github.com/mikey/newsletter-filter/internal/adapters/reputation"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingTrainer captures training dispatches
type recordingTrainer struct {
	calls map[string]int
}

func (t *recordingTrainer) Train(ctx context.Context, userID string, items []*core.FeedbackItem) error {
	if t.calls == nil {
		t.calls = make(map[string]int)
	}
	t.calls[userID] += len(items)
	return nil
}

type improverFixture struct {
	improver   *Improver
	reputation core.ReputationStore
	store      core.FeedbackStore
	trainer    *recordingTrainer
}

func newImproverFixture(t *testing.T) *improverFixture {
	t.Helper()

	logger := zap.NewNop()
	reputationStore := reputation.NewMemoryStore(logger)
	store := feedbackstore.NewMemoryStore(logger)
	trainer := &recordingTrainer{}

	return &improverFixture{
		improver:   NewImprover(reputationStore, store, trainer, Config{}, logger),
		reputation: reputationStore,
		store:      store,
		trainer:    trainer,
	}
}

func newItem(id string, feedbackType core.FeedbackType, detected bool, confidence float64) *core.FeedbackItem {
	return &core.FeedbackItem{
		ID:              id,
		UserID:          "user-1",
		EmailID:         "email-" + id,
		Sender:          "news@acme.com",
		SenderDomain:    "acme.com",
		Type:            feedbackType,
		DetectionResult: detected,
		Confidence:      confidence,
		Timestamp:       time.Now(),
	}
}

func TestApplyFeedbackNudgesReputation(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	item := newItem("f1", core.FeedbackConfirm, true, 0.5)
	require.NoError(t, f.store.Save(ctx, item))
	require.NoError(t, f.improver.ApplyFeedback(ctx, item))

	// Base weight 1.0, no surprise adjustment: rate 0.3
	rep, err := f.reputation.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	assert.InDelta(t, 0.65, rep.Score, 1e-9)

	// Domain moves at half the rate
	domainRep, err := f.reputation.Get(ctx, "acme.com")
	require.NoError(t, err)
	assert.InDelta(t, 0.575, domainRep.Score, 1e-9)

	assert.True(t, item.Processed)
}

func TestApplyFeedbackIdempotent(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	item := newItem("f1", core.FeedbackConfirm, true, 0.5)
	require.NoError(t, f.store.Save(ctx, item))
	require.NoError(t, f.improver.ApplyFeedback(ctx, item))

	rep, err := f.reputation.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	first := rep.Score

	// Second application is a no-op
	require.NoError(t, f.improver.ApplyFeedback(ctx, item))
	rep, err = f.reputation.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	assert.Equal(t, first, rep.Score)
	assert.Equal(t, 1, rep.Observations)
}

func TestSurpriseBoostOutweighsAgreement(t *testing.T) {
	ctx := context.Background()

	// A reject contradicting a confident positive prediction
	surprise := newImproverFixture(t)
	item := newItem("f1", core.FeedbackReject, true, 0.9)
	require.NoError(t, surprise.store.Save(ctx, item))
	require.NoError(t, surprise.improver.ApplyFeedback(ctx, item))

	surpriseRep, err := surprise.reputation.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	// Weight 1.0 * boost 2.0, rate 0.6 toward 0
	assert.InDelta(t, 0.2, surpriseRep.Score, 1e-9)

	// A reject agreeing with a confident negative prediction
	agreement := newImproverFixture(t)
	item = newItem("f1", core.FeedbackReject, false, 0.1)
	require.NoError(t, agreement.store.Save(ctx, item))
	require.NoError(t, agreement.improver.ApplyFeedback(ctx, item))

	agreementRep, err := agreement.reputation.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	// Weight 1.0 * damp 0.5, rate 0.15 toward 0
	assert.InDelta(t, 0.425, agreementRep.Score, 1e-9)

	surpriseDelta := 0.5 - surpriseRep.Score
	agreementDelta := 0.5 - agreementRep.Score
	assert.Greater(t, surpriseDelta, agreementDelta)
}

func TestVerifyFeedbackUsesReducedWeight(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	item := newItem("f1", core.FeedbackVerify, false, 0.5)
	require.NoError(t, f.store.Save(ctx, item))
	require.NoError(t, f.improver.ApplyFeedback(ctx, item))

	// Verify weight 0.8, rate 0.24 toward 0
	rep, err := f.reputation.Get(ctx, "news@acme.com")
	require.NoError(t, err)
	assert.InDelta(t, 0.38, rep.Score, 1e-9)
}

func TestApplyFeedbackValidation(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	var validationErr *core.ValidationError

	badType := newItem("f1", core.FeedbackType("bogus"), true, 0.5)
	err := f.improver.ApplyFeedback(ctx, badType)
	require.ErrorAs(t, err, &validationErr)

	noSender := newItem("f2", core.FeedbackConfirm, true, 0.5)
	noSender.Sender = ""
	err = f.improver.ApplyFeedback(ctx, noSender)
	require.ErrorAs(t, err, &validationErr)
}

func TestHighImpactFeedbackAdjustsFeatureWeights(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	// Confident positive contradicted by a reject
	item := newItem("f1", core.FeedbackReject, true, 0.9)
	item.Features = map[string]float64{"list_header": 5.0}
	require.NoError(t, f.store.Save(ctx, item))
	require.NoError(t, f.improver.ApplyFeedback(ctx, item))

	weights := f.improver.FeatureWeights()
	// direction -1, weight 2.0, value/10 = 0.5
	assert.InDelta(t, -1.0, weights["list_header"], 1e-9)
}

func TestAgreeingFeedbackLeavesFeatureWeightsAlone(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	item := newItem("f1", core.FeedbackConfirm, true, 0.9)
	item.Features = map[string]float64{"list_header": 5.0}
	require.NoError(t, f.store.Save(ctx, item))
	require.NoError(t, f.improver.ApplyFeedback(ctx, item))

	assert.Empty(t, f.improver.FeatureWeights())
}

func TestProcessPending(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.Save(ctx, newItem(fmt.Sprintf("f%d", i), core.FeedbackConfirm, true, 0.5)))
	}
	// One invalid item that fails to apply
	bad := newItem("bad", core.FeedbackConfirm, true, 0.5)
	bad.Sender = ""
	bad.SenderDomain = ""
	require.NoError(t, f.store.Save(ctx, bad))

	applied, failed, err := f.improver.ProcessPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	assert.Equal(t, 1, failed)

	// Nothing valid left to apply
	applied, failed, err = f.improver.ProcessPending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, 1, failed)
}

func TestTrainPersonalizedModelRequiresMinimum(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		require.NoError(t, f.store.Save(ctx, newItem(fmt.Sprintf("f%d", i), core.FeedbackConfirm, true, 0.5)))
	}

	trained, err := f.improver.TrainPersonalizedModel(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, trained)
	assert.Empty(t, f.trainer.calls)

	require.NoError(t, f.store.Save(ctx, newItem("f9", core.FeedbackConfirm, true, 0.5)))

	trained, err = f.improver.TrainPersonalizedModel(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, trained)
	assert.Equal(t, 10, f.trainer.calls["user-1"])
}

func TestTrainPersonalizedModelsSweepsAllUsers(t *testing.T) {
	f := newImproverFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		item := newItem(fmt.Sprintf("a%d", i), core.FeedbackConfirm, true, 0.5)
		require.NoError(t, f.store.Save(ctx, item))
	}
	sparse := newItem("b0", core.FeedbackConfirm, true, 0.5)
	sparse.UserID = "user-2"
	require.NoError(t, f.store.Save(ctx, sparse))

	trained, skipped, failed, err := f.improver.TrainPersonalizedModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, trained)
	assert.Equal(t, 1, skipped)
	assert.Zero(t, failed)
}

package improver

import (
	"context"
	"fmt"
	"sync"

	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// Config carries the learning constants. All of them are overridable;
// the zero value falls back to the defaults below.
type Config struct {
	// HighConfidence bounds a "confident positive" prior prediction
	HighConfidence float64
	// LowConfidence bounds a "confident negative" prior prediction
	LowConfidence float64
	// LearningRate scales every reputation nudge
	LearningRate float64
	// SurpriseBoost multiplies feedback contradicting a confident prior
	SurpriseBoost float64
	// SurpriseDamp multiplies feedback agreeing with a confident prior
	SurpriseDamp float64
	// TypeWeights is the base weight per feedback type
	TypeWeights map[core.FeedbackType]float64
	// MinTrainingItems gates per-user model training
	MinTrainingItems int
}

// DefaultConfig returns the canonical learning constants
func DefaultConfig() Config {
	return Config{
		HighConfidence: 0.8,
		LowConfidence:  0.2,
		LearningRate:   0.3,
		SurpriseBoost:  2.0,
		SurpriseDamp:   0.5,
		TypeWeights: map[core.FeedbackType]float64{
			core.FeedbackConfirm:   1.0,
			core.FeedbackReject:    1.0,
			core.FeedbackVerify:    0.8,
			core.FeedbackUncertain: 0.3,
			core.FeedbackIgnore:    0.1,
		},
		MinTrainingItems: 10,
	}
}

// Improver converts feedback events into reputation and feature-weight
// adjustments. Feedback that contradicts a confident prior prediction
// updates the model faster than feedback that merely agrees with it.
type Improver struct {
	reputation    core.ReputationStore
	feedbackStore core.FeedbackStore
	trainer       core.PersonalizationTrainer
	logger        *zap.Logger
	cfg           Config

	mu             sync.Mutex
	featureWeights map[string]float64
}

// NewImprover creates a new detection improver
func NewImprover(
	reputation core.ReputationStore,
	feedbackStore core.FeedbackStore,
	trainer core.PersonalizationTrainer,
	cfg Config,
	logger *zap.Logger,
) *Improver {
	defaults := DefaultConfig()
	if cfg.HighConfidence <= 0 {
		cfg.HighConfidence = defaults.HighConfidence
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = defaults.LowConfidence
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = defaults.LearningRate
	}
	if cfg.SurpriseBoost <= 0 {
		cfg.SurpriseBoost = defaults.SurpriseBoost
	}
	if cfg.SurpriseDamp <= 0 {
		cfg.SurpriseDamp = defaults.SurpriseDamp
	}
	if cfg.TypeWeights == nil {
		cfg.TypeWeights = defaults.TypeWeights
	}
	if cfg.MinTrainingItems <= 0 {
		cfg.MinTrainingItems = defaults.MinTrainingItems
	}

	return &Improver{
		reputation:     reputation,
		feedbackStore:  feedbackStore,
		trainer:        trainer,
		logger:         logger,
		cfg:            cfg,
		featureWeights: make(map[string]float64),
	}
}

// ApplyFeedback folds one feedback item into the reputation store and,
// for high-impact feedback, the global feature weights. Re-applying an
// already-processed item is a no-op.
func (im *Improver) ApplyFeedback(ctx context.Context, item *core.FeedbackItem) error {
	if item.Processed {
		return nil
	}
	if !core.ValidFeedbackType(item.Type) {
		return &core.ValidationError{Field: "type", Reason: fmt.Sprintf("unrecognized feedback type %q", item.Type)}
	}
	if item.Sender == "" {
		return &core.ValidationError{Field: "sender", Reason: "required"}
	}

	weight := im.feedbackWeight(item)

	isConfirm := item.Type == core.FeedbackConfirm
	target := 0.0
	if isConfirm {
		target = 1.0
	}

	rate := im.cfg.LearningRate * weight
	if rate > 1 {
		rate = 1
	}

	if _, err := im.reputation.Nudge(ctx, item.Sender, target, rate); err != nil {
		return &core.StorageError{Op: "reputation nudge", Err: err}
	}
	if item.SenderDomain != "" {
		if _, err := im.reputation.Nudge(ctx, item.SenderDomain, target, rate/2); err != nil {
			return &core.StorageError{Op: "reputation nudge", Err: err}
		}
	}

	if im.isHighImpact(item) {
		im.adjustFeatureWeights(item, weight, isConfirm)
	}

	if _, err := im.feedbackStore.MarkProcessed(ctx, item.ID); err != nil {
		return &core.StorageError{Op: "feedback mark processed", Err: err}
	}
	item.Processed = true

	im.logger.Debug("Applied feedback",
		zap.String("feedback_id", item.ID),
		zap.String("sender", item.Sender),
		zap.String("type", string(item.Type)),
		zap.Float64("weight", weight))

	return nil
}

// ProcessPending applies all unprocessed feedback, isolating per-item
// failures, and returns the applied and failed counts
func (im *Improver) ProcessPending(ctx context.Context, limit int) (applied, failed int, err error) {
	items, err := im.feedbackStore.GetUnprocessed(ctx, limit)
	if err != nil {
		return 0, 0, &core.StorageError{Op: "feedback get unprocessed", Err: err}
	}

	for _, item := range items {
		if err := im.ApplyFeedback(ctx, item); err != nil {
			im.logger.Error("Failed to apply feedback",
				zap.String("feedback_id", item.ID), zap.Error(err))
			failed++
			continue
		}
		applied++
	}
	return applied, failed, nil
}

// TrainPersonalizedModel dispatches a user's accumulated feedback to the
// personalization trainer. Returns false, without side effects, when the
// user has fewer items than the training minimum.
func (im *Improver) TrainPersonalizedModel(ctx context.Context, userID string) (bool, error) {
	items, err := im.feedbackStore.GetForUser(ctx, userID)
	if err != nil {
		return false, &core.StorageError{Op: "feedback get for user", Err: err}
	}
	if len(items) < im.cfg.MinTrainingItems {
		return false, nil
	}

	if err := im.trainer.Train(ctx, userID, items); err != nil {
		return false, fmt.Errorf("personalization training for %s: %w", userID, err)
	}

	im.logger.Info("Dispatched personalized training",
		zap.String("user_id", userID),
		zap.Int("items", len(items)))
	return true, nil
}

// TrainPersonalizedModels sweeps every user with stored feedback,
// isolating per-user failures, and returns trained/skipped/failed counts
func (im *Improver) TrainPersonalizedModels(ctx context.Context) (trained, skipped, failed int, err error) {
	users, err := im.feedbackStore.ListUserIDs(ctx)
	if err != nil {
		return 0, 0, 0, &core.StorageError{Op: "feedback list users", Err: err}
	}

	for _, userID := range users {
		ok, err := im.TrainPersonalizedModel(ctx, userID)
		if err != nil {
			im.logger.Error("Training failed for user",
				zap.String("user_id", userID), zap.Error(err))
			failed++
			continue
		}
		if ok {
			trained++
		} else {
			skipped++
		}
	}
	return trained, skipped, failed, nil
}

// FeatureWeights returns a copy of the current global feature weights
func (im *Improver) FeatureWeights() map[string]float64 {
	im.mu.Lock()
	defer im.mu.Unlock()

	out := make(map[string]float64, len(im.featureWeights))
	for k, v := range im.featureWeights {
		out[k] = v
	}
	return out
}

// feedbackWeight combines the base type weight with the surprise
// multiplier: contradicting a confident prior boosts the weight,
// agreeing with one damps it
func (im *Improver) feedbackWeight(item *core.FeedbackItem) float64 {
	weight := im.cfg.TypeWeights[item.Type]

	confidentPositive := item.DetectionResult && item.Confidence > im.cfg.HighConfidence
	confidentNegative := !item.DetectionResult && item.Confidence < im.cfg.LowConfidence

	switch item.Type {
	case core.FeedbackConfirm:
		if confidentPositive {
			weight *= im.cfg.SurpriseDamp
		} else if confidentNegative {
			weight *= im.cfg.SurpriseBoost
		}
	case core.FeedbackReject:
		if confidentPositive {
			weight *= im.cfg.SurpriseBoost
		} else if confidentNegative {
			weight *= im.cfg.SurpriseDamp
		}
	}
	return weight
}

// isHighImpact reports whether the feedback both carried a confident
// prior and contradicts it
func (im *Improver) isHighImpact(item *core.FeedbackItem) bool {
	if item.Confidence <= im.cfg.HighConfidence {
		return false
	}
	switch item.Type {
	case core.FeedbackConfirm:
		return !item.DetectionResult
	case core.FeedbackReject:
		return item.DetectionResult
	}
	return false
}

// adjustFeatureWeights nudges each named feature's global weight in the
// direction of the user's answer
func (im *Improver) adjustFeatureWeights(item *core.FeedbackItem, weight float64, isConfirm bool) {
	if len(item.Features) == 0 {
		return
	}

	direction := -1.0
	if isConfirm {
		direction = 1.0
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	for name, value := range item.Features {
		im.featureWeights[name] += direction * weight * (value / 10.0)
	}
}

// LogTrainer is the default PersonalizationTrainer: it records the
// dispatch and does nothing else. Real training lives outside this core.
type LogTrainer struct {
	logger *zap.Logger
}

// NewLogTrainer creates a log-only personalization trainer
func NewLogTrainer(logger *zap.Logger) *LogTrainer {
	return &LogTrainer{logger: logger}
}

// Train logs the dispatched batch
func (t *LogTrainer) Train(ctx context.Context, userID string, items []*core.FeedbackItem) error {
	t.logger.Info("Personalization training dispatched",
		zap.String("user_id", userID),
		zap.Int("items", len(items)))
	return nil
}

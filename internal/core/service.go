package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedbackOverrideConfidence is the threshold above which an explicit
// feedback score short-circuits verification
const FeedbackOverrideConfidence = 0.9

// DetectionService orchestrates the signal analyzers and the aggregator
// to classify one email, and records ad hoc feedback into reputation.
type DetectionService struct {
	analyzers     []Analyzer
	feedback      FeedbackModeAnalyzer
	aggregator    ConfidenceAggregator
	reputation    ReputationStore
	feedbackStore FeedbackStore
	clock         Clock
	logger        *zap.Logger
	nudgeRate     float64
}

// NewDetectionService creates a new detection orchestrator. analyzers are
// the non-feedback analyzers in canonical method order.
func NewDetectionService(
	analyzers []Analyzer,
	feedback FeedbackModeAnalyzer,
	aggregator ConfidenceAggregator,
	reputation ReputationStore,
	feedbackStore FeedbackStore,
	clock Clock,
	logger *zap.Logger,
) *DetectionService {
	return &DetectionService{
		analyzers:     analyzers,
		feedback:      feedback,
		aggregator:    aggregator,
		reputation:    reputation,
		feedbackStore: feedbackStore,
		clock:         clock,
		logger:        logger,
		nudgeRate:     0.1,
	}
}

// DetectNewsletter runs all analyzers against the email and aggregates
// their scores. A non-nil userFeedback switches the feedback analyzer to
// active mode. Any feedback score above the override confidence forces
// needsVerification off regardless of the ambiguous band.
func (s *DetectionService) DetectNewsletter(ctx context.Context, email *Email, userFeedback *UserFeedback) (*DetectionResult, error) {
	scores := s.runAnalyzers(ctx, email, userFeedback, nil)

	combined := s.aggregator.CalculateConfidence(scores)
	needsVerification := s.aggregator.NeedsVerification(combined)

	for _, score := range scores {
		if score.Method == MethodFeedback && score.Confidence > FeedbackOverrideConfidence {
			needsVerification = false
			break
		}
	}

	result := &DetectionResult{
		EmailID:           email.ID,
		IsNewsletter:      combined >= 0.5,
		CombinedScore:     combined,
		NeedsVerification: needsVerification,
		Scores:            scores,
		AnalyzedAt:        s.clock.Now(),
	}

	s.logger.Debug("Newsletter detection complete",
		zap.String("email_id", email.ID),
		zap.String("sender", email.From),
		zap.Float64("combined_score", combined),
		zap.Bool("is_newsletter", result.IsNewsletter),
		zap.Bool("needs_verification", needsVerification))

	return result, nil
}

// GetConfidenceScore runs a chosen subset of analyzers and returns only
// the combined score. A nil or empty methods list runs all analyzers.
// No side effects are performed.
func (s *DetectionService) GetConfidenceScore(ctx context.Context, email *Email, methods []DetectionMethod) (float64, error) {
	var wanted map[DetectionMethod]bool
	if len(methods) > 0 {
		wanted = make(map[DetectionMethod]bool, len(methods))
		for _, m := range methods {
			wanted[m] = true
		}
	}

	scores := s.runAnalyzers(ctx, email, nil, wanted)
	return s.aggregator.CalculateConfidence(scores), nil
}

// NeedsVerification reports whether a combined score is ambiguous
func (s *DetectionService) NeedsVerification(combined float64) bool {
	return s.aggregator.NeedsVerification(combined)
}

// RecordFeedback tracks an ad hoc feedback event for an email and nudges
// the sender's (and domain's) reputation. Safe to call repeatedly; each
// call appends a fresh event.
func (s *DetectionService) RecordFeedback(ctx context.Context, email *Email, isNewsletter bool, userID string) error {
	feedbackType := FeedbackReject
	target := 0.0
	if isNewsletter {
		feedbackType = FeedbackConfirm
		target = 1.0
	}

	now := s.clock.Now()
	item := &FeedbackItem{
		ID:           uuid.NewString(),
		UserID:       userID,
		EmailID:      email.ID,
		MessageID:    email.MessageID,
		Sender:       strings.ToLower(strings.TrimSpace(email.From)),
		SenderDomain: email.SenderDomain(),
		Subject:      email.Subject,
		Type:         feedbackType,
		Confidence:   NeutralReputation,
		Features:     map[string]float64{},
		Timestamp:    now,
	}

	if err := s.feedbackStore.Save(ctx, item); err != nil {
		return &StorageError{Op: "feedback save", Err: err}
	}

	if _, err := s.reputation.Nudge(ctx, item.Sender, target, s.nudgeRate); err != nil {
		return &StorageError{Op: "reputation nudge", Err: err}
	}
	if item.SenderDomain != "" {
		if _, err := s.reputation.Nudge(ctx, item.SenderDomain, target, s.nudgeRate/2); err != nil {
			return &StorageError{Op: "reputation nudge", Err: err}
		}
	}

	// The reputation effect is applied here, so the improver sweep must
	// not pick the item up again.
	if _, err := s.feedbackStore.MarkProcessed(ctx, item.ID); err != nil {
		return &StorageError{Op: "feedback mark processed", Err: err}
	}

	s.logger.Info("Recorded ad hoc feedback",
		zap.String("email_id", email.ID),
		zap.String("user_id", userID),
		zap.Bool("is_newsletter", isNewsletter))

	return nil
}

// runAnalyzers fans the analyzers out concurrently and collects their
// scores in canonical method order. A failed analyzer is logged and
// skipped; its absence simply removes its weight from the average.
func (s *DetectionService) runAnalyzers(ctx context.Context, email *Email, userFeedback *UserFeedback, wanted map[DetectionMethod]bool) []DetectionScore {
	type slot struct {
		score *DetectionScore
		err   error
	}

	run := make([]Analyzer, 0, len(s.analyzers))
	for _, a := range s.analyzers {
		if wanted == nil || wanted[a.Method()] {
			run = append(run, a)
		}
	}
	runFeedback := s.feedback != nil && (wanted == nil || wanted[MethodFeedback])

	slots := make([]slot, len(run)+1)
	var wg sync.WaitGroup
	for i, a := range run {
		wg.Add(1)
		go func(i int, a Analyzer) {
			defer wg.Done()
			score, err := a.Analyze(ctx, email)
			slots[i] = slot{score: score, err: err}
		}(i, a)
	}
	if runFeedback {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var score *DetectionScore
			var err error
			if userFeedback != nil {
				score, err = s.feedback.AnalyzeWithFeedback(ctx, email, userFeedback)
			} else {
				score, err = s.feedback.Analyze(ctx, email)
			}
			slots[len(run)] = slot{score: score, err: err}
		}()
	}
	wg.Wait()

	byMethod := make(map[DetectionMethod]*DetectionScore, len(slots))
	for _, sl := range slots {
		if sl.err != nil {
			s.logger.Warn("Analyzer failed, skipping its signal", zap.Error(sl.err))
			continue
		}
		if sl.score != nil {
			byMethod[sl.score.Method] = sl.score
		}
	}

	scores := make([]DetectionScore, 0, len(byMethod))
	for _, method := range MethodOrder {
		if score, ok := byMethod[method]; ok {
			scores = append(scores, *score)
		}
	}
	return scores
}

var _ Clock = SystemClock{}

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

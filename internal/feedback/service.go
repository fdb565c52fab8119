package feedback

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/improver"
	"github.com/mikey/newsletter-filter/internal/verification"
	"go.uber.org/zap"
)

// Report bundles the full analysis of a user's feedback history
type Report struct {
	UserID      string
	Period      Period
	Stats       *Stats
	Patterns    *Patterns
	Metrics     *AccuracyMetrics
	Suggestions []string
}

// Service is the feedback surface: it accepts submitted feedback,
// resolves verification responses and reports aggregate statistics.
type Service struct {
	store        core.FeedbackStore
	improver     *improver.Improver
	verification *verification.Service
	clock        core.Clock
	logger       *zap.Logger
}

// NewService creates a new feedback service
func NewService(
	store core.FeedbackStore,
	imp *improver.Improver,
	verificationSvc *verification.Service,
	clock core.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:        store,
		improver:     imp,
		verification: verificationSvc,
		clock:        clock,
		logger:       logger,
	}
}

// SubmitFeedback normalizes a bare feedback-shaped item into a full
// FeedbackItem, appends it and applies it to the improver
func (s *Service) SubmitFeedback(ctx context.Context, item *core.FeedbackItem) error {
	if item == nil {
		return &core.ValidationError{Field: "feedback", Reason: "required"}
	}
	if !core.ValidFeedbackType(item.Type) {
		return &core.ValidationError{Field: "type", Reason: "unrecognized feedback type"}
	}
	if item.UserID == "" {
		return &core.ValidationError{Field: "userId", Reason: "required"}
	}
	if item.EmailID == "" {
		return &core.ValidationError{Field: "emailId", Reason: "required"}
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Sender = strings.ToLower(strings.TrimSpace(item.Sender))
	if item.SenderDomain == "" {
		item.SenderDomain = core.DomainOf(item.Sender)
	}
	if item.Confidence == 0 {
		item.Confidence = core.NeutralReputation
	}
	if item.Features == nil {
		item.Features = map[string]float64{}
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = s.clock.Now()
	}

	if err := s.store.Save(ctx, item); err != nil {
		return &core.StorageError{Op: "feedback save", Err: err}
	}

	if err := s.improver.ApplyFeedback(ctx, item); err != nil {
		return err
	}

	s.logger.Info("Feedback submitted",
		zap.String("feedback_id", item.ID),
		zap.String("user_id", item.UserID),
		zap.String("type", string(item.Type)))
	return nil
}

// RequestVerification asks the user to resolve an ambiguous email
func (s *Service) RequestVerification(ctx context.Context, userID string, email *core.Email, confidence float64) (*core.VerificationRequest, error) {
	return s.verification.GenerateVerificationRequest(ctx, userID, email, confidence)
}

// ProcessVerification resolves a verification request from an action
// link's token and action parameters
func (s *Service) ProcessVerification(ctx context.Context, token, action string) (*core.VerificationRequest, error) {
	return s.verification.ProcessAction(ctx, token, action)
}

// GenerateVerificationRequests batch-creates verification requests for
// low-confidence, unverified feedback candidates
func (s *Service) GenerateVerificationRequests(ctx context.Context, confidenceThreshold float64, limit int) ([]*core.VerificationRequest, error) {
	return s.verification.GenerateVerificationRequests(ctx, confidenceThreshold, limit)
}

// ProcessExpiredRequests sweeps pending requests past their expiry
func (s *Service) ProcessExpiredRequests(ctx context.Context) (int, error) {
	return s.verification.ProcessExpiredRequests(ctx)
}

// GetFeedbackStats analyzes a user's feedback over the period and
// returns the full report
func (s *Service) GetFeedbackStats(ctx context.Context, userID string, period Period) (*Report, error) {
	items, err := s.store.GetForUser(ctx, userID)
	if err != nil {
		return nil, &core.StorageError{Op: "feedback get for user", Err: err}
	}

	stats := AnalyzeFeedback(items, period, s.clock.Now())
	patterns := IdentifyPatterns(items)
	metrics := CalculateAccuracyMetrics(items)

	return &Report{
		UserID:      userID,
		Period:      period,
		Stats:       stats,
		Patterns:    patterns,
		Metrics:     metrics,
		Suggestions: GenerateSuggestions(stats, patterns, metrics),
	}, nil
}

// TrainPersonalizedModels sweeps all users with stored feedback through
// the personalization trainer
func (s *Service) TrainPersonalizedModels(ctx context.Context) (trained, skipped, failed int, err error) {
	return s.improver.TrainPersonalizedModels(ctx)
}

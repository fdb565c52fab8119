package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// Defaults for the request lifecycle
const (
	DefaultExpiryDays     = 7
	DefaultMaxResendCount = 3
)

// Config carries the verification lifecycle settings
type Config struct {
	ExpiryDays     int
	MaxResendCount int
	BaseURL        string
}

// Service owns the verification-request state machine: it creates,
// resends, resolves and expires token-addressed requests for ambiguous
// emails, and records the user's responses as feedback.
type Service struct {
	store         core.VerificationStore
	feedbackStore core.FeedbackStore
	sender        core.EmailSender
	clock         core.Clock
	logger        *zap.Logger
	cfg           Config

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewService creates a new verification service
func NewService(
	store core.VerificationStore,
	feedbackStore core.FeedbackStore,
	sender core.EmailSender,
	clock core.Clock,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.ExpiryDays <= 0 {
		cfg.ExpiryDays = DefaultExpiryDays
	}
	if cfg.MaxResendCount <= 0 {
		cfg.MaxResendCount = DefaultMaxResendCount
	}
	return &Service{
		store:         store,
		feedbackStore: feedbackStore,
		sender:        sender,
		clock:         clock,
		logger:        logger,
		cfg:           cfg,
		stopCh:        make(chan struct{}),
	}
}

// GenerateVerificationRequest creates a pending request for an ambiguous
// email, or returns the existing pending one for (userID, email.ID).
// A newly created request is also delivered to the user.
func (s *Service) GenerateVerificationRequest(ctx context.Context, userID string, email *core.Email, confidence float64) (*core.VerificationRequest, error) {
	if userID == "" {
		return nil, &core.ValidationError{Field: "userId", Reason: "required"}
	}
	if email == nil || email.ID == "" {
		return nil, &core.ValidationError{Field: "emailId", Reason: "required"}
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.clock.Now()
	req := &core.VerificationRequest{
		ID:               uuid.NewString(),
		UserID:           userID,
		EmailID:          email.ID,
		MessageID:        email.MessageID,
		Sender:           strings.ToLower(strings.TrimSpace(email.From)),
		SenderDomain:     email.SenderDomain(),
		Subject:          email.Subject,
		Confidence:       confidence,
		Status:           core.StatusPending,
		GeneratedAt:      now,
		ExpiresAt:        now.AddDate(0, 0, s.cfg.ExpiryDays),
		RequestSentCount: 1,
		Token:            token,
	}

	stored, created, err := s.store.CreateOrGetPending(ctx, req)
	if err != nil {
		return nil, &core.StorageError{Op: "verification create", Err: err}
	}
	if !created {
		s.logger.Debug("Reusing pending verification request",
			zap.String("request_id", stored.ID),
			zap.String("email_id", email.ID))
		return stored, nil
	}

	if err := s.deliver(ctx, stored); err != nil {
		s.logger.Error("Failed to deliver verification email",
			zap.String("request_id", stored.ID),
			zap.Error(err))
	}

	s.logger.Info("Generated verification request",
		zap.String("request_id", stored.ID),
		zap.String("user_id", userID),
		zap.String("email_id", email.ID),
		zap.Float64("confidence", confidence))

	return stored, nil
}

// ResendVerificationRequest re-delivers a pending request, incrementing
// the send counter and extending the expiry. It fails once the request
// is non-pending or the resend limit is reached.
func (s *Service) ResendVerificationRequest(ctx context.Context, id string) (*core.VerificationRequest, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == core.ErrNotFound {
			return nil, &core.NotFoundError{Kind: "verification request", Key: id}
		}
		return nil, &core.StorageError{Op: "verification get", Err: err}
	}

	if req.Status != core.StatusPending {
		return nil, &core.StateError{Op: "resend", Reason: fmt.Sprintf("request is %s, not pending", req.Status)}
	}
	if req.RequestSentCount >= s.cfg.MaxResendCount {
		return nil, &core.StateError{Op: "resend", Reason: fmt.Sprintf("resend limit of %d reached", s.cfg.MaxResendCount)}
	}

	req.RequestSentCount++
	req.ExpiresAt = s.clock.Now().AddDate(0, 0, s.cfg.ExpiryDays)

	if err := s.store.Update(ctx, req); err != nil {
		return nil, &core.StorageError{Op: "verification update", Err: err}
	}

	if err := s.deliver(ctx, req); err != nil {
		s.logger.Error("Failed to re-deliver verification email",
			zap.String("request_id", req.ID),
			zap.Error(err))
	}

	return req, nil
}

// ProcessVerification resolves a pending request through its token.
// isNewsletter moves the request to confirmed or rejected and records
// the user's answer as feedback for the improver.
func (s *Service) ProcessVerification(ctx context.Context, token string, isNewsletter bool) (*core.VerificationRequest, error) {
	req, err := s.store.GetByToken(ctx, token)
	if err != nil {
		if err == core.ErrNotFound {
			return nil, &core.NotFoundError{Kind: "verification token", Key: token}
		}
		return nil, &core.StorageError{Op: "verification get", Err: err}
	}

	if req.Status.Terminal() {
		return nil, &core.StateError{Op: "process", Reason: fmt.Sprintf("request already %s", req.Status)}
	}

	now := s.clock.Now()
	if isNewsletter {
		req.Status = core.StatusConfirmed
	} else {
		req.Status = core.StatusRejected
	}
	req.RespondedAt = &now
	response := isNewsletter
	req.UserResponse = &response

	if err := s.store.Update(ctx, req); err != nil {
		return nil, &core.StorageError{Op: "verification update", Err: err}
	}

	if err := s.recordResponse(ctx, req, isNewsletter); err != nil {
		s.logger.Error("Failed to record verification response as feedback",
			zap.String("request_id", req.ID),
			zap.Error(err))
	}

	s.logger.Info("Processed verification response",
		zap.String("request_id", req.ID),
		zap.Bool("is_newsletter", isNewsletter))

	return req, nil
}

// ProcessAction resolves a request from an action link parameter pair.
// The ignore action records an ignore feedback event and leaves the
// request pending, so it later expires.
func (s *Service) ProcessAction(ctx context.Context, token, action string) (*core.VerificationRequest, error) {
	switch action {
	case ActionConfirm:
		return s.ProcessVerification(ctx, token, true)
	case ActionReject:
		return s.ProcessVerification(ctx, token, false)
	case ActionIgnore:
		req, err := s.store.GetByToken(ctx, token)
		if err != nil {
			if err == core.ErrNotFound {
				return nil, &core.NotFoundError{Kind: "verification token", Key: token}
			}
			return nil, &core.StorageError{Op: "verification get", Err: err}
		}
		if err := s.saveFeedback(ctx, req, core.FeedbackIgnore); err != nil {
			s.logger.Error("Failed to record ignore feedback", zap.Error(err))
		}
		return req, nil
	default:
		return nil, &core.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
}

// GenerateVerificationRequests batch-creates requests for feedback items
// whose recorded confidence is below the threshold and whose email has
// not been asked about yet, up to limit. Per-item failures are logged
// and skipped.
func (s *Service) GenerateVerificationRequests(ctx context.Context, confidenceThreshold float64, limit int) ([]*core.VerificationRequest, error) {
	items, err := s.feedbackStore.GetUncertain(ctx, confidenceThreshold, 0)
	if err != nil {
		return nil, &core.StorageError{Op: "feedback get uncertain", Err: err}
	}

	created := make([]*core.VerificationRequest, 0, limit)
	for _, item := range items {
		if limit > 0 && len(created) >= limit {
			break
		}

		exists, err := s.store.HasRequestForEmail(ctx, item.UserID, item.EmailID)
		if err != nil {
			s.logger.Warn("Skipping candidate after lookup failure",
				zap.String("email_id", item.EmailID), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		email := &core.Email{
			ID:        item.EmailID,
			MessageID: item.MessageID,
			From:      item.Sender,
			Subject:   item.Subject,
		}
		req, err := s.GenerateVerificationRequest(ctx, item.UserID, email, item.Confidence)
		if err != nil {
			s.logger.Warn("Skipping candidate after create failure",
				zap.String("email_id", item.EmailID), zap.Error(err))
			continue
		}
		created = append(created, req)
	}

	s.logger.Info("Batch verification generation complete",
		zap.Int("candidates", len(items)),
		zap.Int("created", len(created)))

	return created, nil
}

// ProcessExpiredRequests sweeps all pending requests past their expiry,
// marks them expired and returns the count processed
func (s *Service) ProcessExpiredRequests(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expired, err := s.store.ListExpiredPending(ctx, now)
	if err != nil {
		return 0, &core.StorageError{Op: "verification list expired", Err: err}
	}

	count := 0
	for _, req := range expired {
		req.Status = core.StatusExpired
		if err := s.store.Update(ctx, req); err != nil {
			s.logger.Error("Failed to expire verification request",
				zap.String("request_id", req.ID), zap.Error(err))
			continue
		}
		count++
	}

	if count > 0 {
		s.logger.Info("Expired verification requests", zap.Int("count", count))
	}
	return count, nil
}

// StartSweeper runs the expiry sweep on a fixed interval until Stop
func (s *Service) StartSweeper(freq time.Duration) {
	go func() {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.ProcessExpiredRequests(context.Background()); err != nil {
					s.logger.Error("Expiry sweep failed", zap.Error(err))
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the background sweeper. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// deliver formats and sends the verification email to the user. The
// userID doubles as the user's mailbox address.
func (s *Service) deliver(ctx context.Context, req *core.VerificationRequest) error {
	msg := FormatVerificationEmail(req, s.cfg.BaseURL)
	return s.sender.Send(ctx, req.UserID, msg.Subject, msg.HTML, msg.Text)
}

// recordResponse appends the user's confirm/reject answer as feedback
func (s *Service) recordResponse(ctx context.Context, req *core.VerificationRequest, isNewsletter bool) error {
	feedbackType := core.FeedbackReject
	if isNewsletter {
		feedbackType = core.FeedbackConfirm
	}
	return s.saveFeedback(ctx, req, feedbackType)
}

func (s *Service) saveFeedback(ctx context.Context, req *core.VerificationRequest, feedbackType core.FeedbackType) error {
	item := &core.FeedbackItem{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		EmailID:         req.EmailID,
		MessageID:       req.MessageID,
		Sender:          req.Sender,
		SenderDomain:    req.SenderDomain,
		Subject:         req.Subject,
		Type:            feedbackType,
		DetectionResult: req.Confidence >= 0.5,
		Confidence:      req.Confidence,
		Features:        map[string]float64{},
		Timestamp:       s.clock.Now(),
	}
	if err := s.feedbackStore.Save(ctx, item); err != nil {
		return &core.StorageError{Op: "feedback save", Err: err}
	}
	return nil
}

// newToken returns an unguessable 64-character hex token
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package core

import (
	"context"
	"time"
)

// Analyzer scores one email with a single detection heuristic
type Analyzer interface {
	// Analyze produces a score in [0,1] with a self-reported confidence
	Analyze(ctx context.Context, email *Email) (*DetectionScore, error)

	// Method returns the heuristic's identity tag
	Method() DetectionMethod

	// Weight returns the static reliability weight of this heuristic
	Weight() float64
}

// FeedbackModeAnalyzer is an Analyzer that can substitute an explicit
// per-user feedback aggregate for its passive history lookup
type FeedbackModeAnalyzer interface {
	Analyzer

	// AnalyzeWithFeedback scores the email in active mode
	AnalyzeWithFeedback(ctx context.Context, email *Email, feedback *UserFeedback) (*DetectionScore, error)
}

// ConfidenceAggregator fuses per-method scores into a combined probability
type ConfidenceAggregator interface {
	// CalculateConfidence returns the confidence-weighted average in [0,1]
	CalculateConfidence(scores []DetectionScore) float64

	// NeedsVerification reports whether the score is ambiguous
	NeedsVerification(combined float64) bool

	// MethodWeight returns the static weight for a method
	MethodWeight(method DetectionMethod) float64
}

// ReputationStore persists sender and domain reputation scalars
type ReputationStore interface {
	// Get retrieves the reputation for a key, or ErrNotFound
	Get(ctx context.Context, key string) (*SenderReputation, error)

	// Set stores a reputation entry
	Set(ctx context.Context, rep *SenderReputation) error

	// Nudge atomically moves the key's score toward target by rate,
	// clamped to [0,1], and increments the observation count. Unseen
	// keys start from the neutral score.
	Nudge(ctx context.Context, key string, target, rate float64) (*SenderReputation, error)

	// Stop releases any background resources
	Stop()
}

// FeedbackStore is the append-only persistence for feedback events
type FeedbackStore interface {
	// Save appends a feedback item
	Save(ctx context.Context, item *FeedbackItem) error

	// GetForUser returns a user's feedback, newest first
	GetForUser(ctx context.Context, userID string) ([]*FeedbackItem, error)

	// GetForEmail returns feedback for an email, newest first
	GetForEmail(ctx context.Context, emailID string) ([]*FeedbackItem, error)

	// GetForSender returns feedback about a sender address, newest first
	GetForSender(ctx context.Context, sender string) ([]*FeedbackItem, error)

	// GetUnprocessed returns unprocessed items, oldest first
	GetUnprocessed(ctx context.Context, limit int) ([]*FeedbackItem, error)

	// MarkProcessed flips processed to true exactly once. Returns false
	// (not an error) when the id is unknown.
	MarkProcessed(ctx context.Context, id string) (bool, error)

	// GetUncertain returns unprocessed items whose recorded confidence is
	// strictly below maxConfidence, oldest first, up to limit
	GetUncertain(ctx context.Context, maxConfidence float64, limit int) ([]*FeedbackItem, error)

	// ListUserIDs returns the distinct users with stored feedback
	ListUserIDs(ctx context.Context) ([]string, error)

	// Stop releases any background resources
	Stop()
}

// VerificationStore persists verification requests keyed by id and token
type VerificationStore interface {
	// CreateOrGetPending atomically returns an existing pending request
	// for (userID, emailID) or inserts req as the pending one. The bool
	// reports whether req was inserted.
	CreateOrGetPending(ctx context.Context, req *VerificationRequest) (*VerificationRequest, bool, error)

	// GetByID retrieves a request by id, or ErrNotFound
	GetByID(ctx context.Context, id string) (*VerificationRequest, error)

	// GetByToken retrieves a request by its token, or ErrNotFound
	GetByToken(ctx context.Context, token string) (*VerificationRequest, error)

	// Update persists changed fields of an existing request
	Update(ctx context.Context, req *VerificationRequest) error

	// ListExpiredPending returns pending requests with expiresAt before now
	ListExpiredPending(ctx context.Context, now time.Time) ([]*VerificationRequest, error)

	// HasRequestForEmail reports whether any request, in any status,
	// exists for (userID, emailID)
	HasRequestForEmail(ctx context.Context, userID, emailID string) (bool, error)

	// Stop releases any background resources
	Stop()
}

// EmailSender delivers a rendered message to a recipient
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// PersonalizationTrainer receives a user's accumulated feedback for
// model training. The training algorithm itself lives outside this core.
type PersonalizationTrainer interface {
	Train(ctx context.Context, userID string, items []*FeedbackItem) error
}

// Clock abstracts wall-clock time for deterministic tests
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

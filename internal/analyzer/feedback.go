package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// FeedbackAnalyzer scores an email from user feedback. In active mode an
// explicit UserFeedback aggregate short-circuits with near-certain values;
// otherwise it falls back to the historical average of stored feedback
// about the sender.
type FeedbackAnalyzer struct {
	store  core.FeedbackStore
	logger *zap.Logger
}

// NewFeedbackAnalyzer creates a new feedback analyzer
func NewFeedbackAnalyzer(store core.FeedbackStore, logger *zap.Logger) *FeedbackAnalyzer {
	return &FeedbackAnalyzer{store: store, logger: logger}
}

// Method returns the heuristic tag
func (a *FeedbackAnalyzer) Method() core.DetectionMethod {
	return core.MethodFeedback
}

// Weight returns the static reliability weight
func (a *FeedbackAnalyzer) Weight() float64 {
	return WeightFeedback
}

// Analyze scores the email in passive mode
func (a *FeedbackAnalyzer) Analyze(ctx context.Context, email *core.Email) (*core.DetectionScore, error) {
	return a.passive(ctx, email)
}

// AnalyzeWithFeedback scores the email in active mode using the supplied
// per-user aggregate, falling back to passive mode when the sender is
// not covered by it
func (a *FeedbackAnalyzer) AnalyzeWithFeedback(ctx context.Context, email *core.Email, feedback *core.UserFeedback) (*core.DetectionScore, error) {
	if feedback == nil {
		return a.passive(ctx, email)
	}

	sender := strings.ToLower(strings.TrimSpace(email.From))
	domain := email.SenderDomain()

	switch {
	case feedback.ConfirmedSenders[sender]:
		return a.explicit(1.0, fmt.Sprintf("sender %s confirmed by user", sender)), nil
	case feedback.TrustedDomains[domain]:
		return a.explicit(1.0, fmt.Sprintf("domain %s trusted by user", domain)), nil
	case feedback.RejectedSenders[sender]:
		return a.explicit(0.0, fmt.Sprintf("sender %s rejected by user", sender)), nil
	case feedback.BlockedDomains[domain]:
		return a.explicit(0.0, fmt.Sprintf("domain %s blocked by user", domain)), nil
	}

	return a.passive(ctx, email)
}

// explicit builds a near-certain score from an explicit user decision
func (a *FeedbackAnalyzer) explicit(score float64, reason string) *core.DetectionScore {
	return &core.DetectionScore{
		Method:     core.MethodFeedback,
		Score:      score,
		Confidence: 0.95,
		Reason:     reason,
	}
}

// passive averages the stored confirm/reject history for the sender
func (a *FeedbackAnalyzer) passive(ctx context.Context, email *core.Email) (*core.DetectionScore, error) {
	sender := strings.ToLower(strings.TrimSpace(email.From))

	items, err := a.store.GetForSender(ctx, sender)
	if err != nil {
		return nil, &core.StorageError{Op: "feedback get for sender", Err: err}
	}

	confirms, rejects := 0, 0
	for _, item := range items {
		switch item.Type {
		case core.FeedbackConfirm:
			confirms++
		case core.FeedbackReject:
			rejects++
		}
	}

	classified := confirms + rejects
	if classified == 0 {
		return &core.DetectionScore{
			Method:     core.MethodFeedback,
			Score:      core.NeutralReputation,
			Confidence: 0.1,
			Reason:     "no feedback history for sender",
		}, nil
	}

	score := float64(confirms) / float64(classified)
	confidence := float64(classified) / (float64(classified) + 2.0)
	if confidence > 0.9 {
		confidence = 0.9
	}

	a.logger.Debug("Feedback history lookup",
		zap.String("email_id", email.ID),
		zap.String("sender", sender),
		zap.Int("confirms", confirms),
		zap.Int("rejects", rejects))

	return &core.DetectionScore{
		Method:     core.MethodFeedback,
		Score:      score,
		Confidence: confidence,
		Reason:     fmt.Sprintf("%d confirms, %d rejects for %s", confirms, rejects, sender),
	}, nil
}

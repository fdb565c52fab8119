package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// SenderAnalyzer returns the persisted reputation scalar for the sender,
// falling back to the sender's domain, falling back to neutral.
type SenderAnalyzer struct {
	store  core.ReputationStore
	logger *zap.Logger
}

// NewSenderAnalyzer creates a new sender-reputation analyzer
func NewSenderAnalyzer(store core.ReputationStore, logger *zap.Logger) *SenderAnalyzer {
	return &SenderAnalyzer{store: store, logger: logger}
}

// Method returns the heuristic tag
func (a *SenderAnalyzer) Method() core.DetectionMethod {
	return core.MethodSender
}

// Weight returns the static reliability weight
func (a *SenderAnalyzer) Weight() float64 {
	return WeightSender
}

// Analyze looks up the sender's persisted reputation
func (a *SenderAnalyzer) Analyze(ctx context.Context, email *core.Email) (*core.DetectionScore, error) {
	sender := strings.ToLower(strings.TrimSpace(email.From))

	rep, err := a.store.Get(ctx, sender)
	if err != nil && errors.Is(err, core.ErrNotFound) {
		if domain := email.SenderDomain(); domain != "" {
			rep, err = a.store.Get(ctx, domain)
		}
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return &core.DetectionScore{
				Method:     core.MethodSender,
				Score:      core.NeutralReputation,
				Confidence: 0.1,
				Reason:     "no reputation history for sender or domain",
			}, nil
		}
		return nil, &core.StorageError{Op: "reputation get", Err: err}
	}

	confidence := reputationConfidence(rep.Observations)

	a.logger.Debug("Sender reputation lookup",
		zap.String("email_id", email.ID),
		zap.String("key", rep.Key),
		zap.Float64("score", rep.Score),
		zap.Int("observations", rep.Observations))

	return &core.DetectionScore{
		Method:     core.MethodSender,
		Score:      rep.Score,
		Confidence: confidence,
		Reason:     fmt.Sprintf("reputation %.2f for %s over %d observations", rep.Score, rep.Key, rep.Observations),
		Metadata:   map[string]string{"key": rep.Key},
	}, nil
}

// reputationConfidence scales with the observation count for the key,
// asymptotically bounded below 1.0
func reputationConfidence(observations int) float64 {
	if observations <= 0 {
		return 0.1
	}
	c := float64(observations) / (float64(observations) + 3.0)
	if c < 0.1 {
		return 0.1
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}

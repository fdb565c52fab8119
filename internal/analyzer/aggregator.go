package analyzer

import (
	"github.com/mikey/newsletter-filter/internal/core"
)

// Static reliability weights per detection method. They must sum to 1.0.
const (
	WeightHeader   = 0.4
	WeightContent  = 0.3
	WeightSender   = 0.2
	WeightFeedback = 0.1
)

// Default bounds of the ambiguous band that triggers verification
const (
	DefaultVerifyLow  = 0.4
	DefaultVerifyHigh = 0.6
)

// Aggregator fuses per-method scores into one combined probability and
// decides whether the result is ambiguous enough to need verification.
type Aggregator struct {
	weights    map[core.DetectionMethod]float64
	verifyLow  float64
	verifyHigh float64
}

// NewAggregator creates an aggregator with the given ambiguous band.
// A non-positive bound falls back to its default; an inverted or empty
// band falls back to the defaults entirely.
func NewAggregator(verifyLow, verifyHigh float64) *Aggregator {
	if verifyLow <= 0 {
		verifyLow = DefaultVerifyLow
	}
	if verifyHigh <= 0 {
		verifyHigh = DefaultVerifyHigh
	}
	if verifyLow >= verifyHigh {
		verifyLow, verifyHigh = DefaultVerifyLow, DefaultVerifyHigh
	}
	return &Aggregator{
		weights: map[core.DetectionMethod]float64{
			core.MethodHeader:   WeightHeader,
			core.MethodContent:  WeightContent,
			core.MethodSender:   WeightSender,
			core.MethodFeedback: WeightFeedback,
		},
		verifyLow:  verifyLow,
		verifyHigh: verifyHigh,
	}
}

// MethodWeight returns the static weight for a method, 0 for unknown tags
func (a *Aggregator) MethodWeight(method core.DetectionMethod) float64 {
	return a.weights[method]
}

// CalculateConfidence computes the confidence-weighted average of the
// scores. Each score's effective weight is methodWeight × confidence.
// An empty list, or one whose confidences are all zero, yields the
// neutral default.
func (a *Aggregator) CalculateConfidence(scores []core.DetectionScore) float64 {
	var weightedSum, weightSum float64
	for _, s := range scores {
		effective := a.MethodWeight(s.Method) * s.Confidence
		weightedSum += s.Score * effective
		weightSum += effective
	}
	if weightSum == 0 {
		return core.NeutralReputation
	}
	combined := weightedSum / weightSum
	if combined < 0 {
		return 0
	}
	if combined > 1 {
		return 1
	}
	return combined
}

// NeedsVerification reports whether the combined score lies strictly
// inside the ambiguous band
func (a *Aggregator) NeedsVerification(combined float64) bool {
	return combined > a.verifyLow && combined < a.verifyHigh
}

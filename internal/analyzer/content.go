package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/utils"
	"go.uber.org/zap"
)

// boilerplatePhrases are unsubscribe/footer phrases typical of list mail
var boilerplatePhrases = []string{
	"unsubscribe",
	"view in browser",
	"view this email in your browser",
	"email preferences",
	"manage your subscription",
	"manage preferences",
	"update your preferences",
	"you are receiving this email",
	"you're receiving this email",
	"opt out",
	"why did i get this",
}

// wrapperMarkers suggest a designed masthead/footer layout rather than
// a hand-written message
var wrapperMarkers = []string{
	"<table",
	"<center",
	"<!doctype html",
	"role=\"presentation\"",
	"bgcolor=",
}

// ContentAnalyzer scores newsletter indicators in the decoded body:
// boilerplate phrases, masthead/footer wrapper structure, and link
// density relative to text length.
type ContentAnalyzer struct {
	logger *zap.Logger
}

// NewContentAnalyzer creates a new content-structure analyzer
func NewContentAnalyzer(logger *zap.Logger) *ContentAnalyzer {
	return &ContentAnalyzer{logger: logger}
}

// Method returns the heuristic tag
func (a *ContentAnalyzer) Method() core.DetectionMethod {
	return core.MethodContent
}

// Weight returns the static reliability weight
func (a *ContentAnalyzer) Weight() float64 {
	return WeightContent
}

// Analyze scores the email's body structure
func (a *ContentAnalyzer) Analyze(ctx context.Context, email *core.Email) (*core.DetectionScore, error) {
	body := strings.ToLower(utils.SanitizeUTF8(email.Body))

	score := 0.0
	matches := 0
	reasons := make([]string, 0, 3)

	if n := a.countPhrases(body); n > 0 {
		contribution := 0.25 * float64(n)
		if contribution > 0.5 {
			contribution = 0.5
		}
		score += contribution
		matches += n
		reasons = append(reasons, fmt.Sprintf("%d boilerplate phrases", n))
	}

	if a.hasWrapperStructure(body) {
		score += 0.25
		matches++
		reasons = append(reasons, "masthead/footer wrapper structure")
	}

	if density := linkDensity(body); density > 0.01 {
		contribution := density * 10
		if contribution > 0.25 {
			contribution = 0.25
		}
		score += contribution
		matches++
		reasons = append(reasons, fmt.Sprintf("link density %.3f", density))
	}

	if score > 1.0 {
		score = 1.0
	}

	confidence := 0.6
	reason := "no newsletter content indicators"
	if matches > 0 {
		confidence = 0.4 + 0.15*float64(matches)
		if confidence > 0.9 {
			confidence = 0.9
		}
		reason = strings.Join(reasons, "; ")
	}

	a.logger.Debug("Content analysis complete",
		zap.String("email_id", email.ID),
		zap.Float64("score", score),
		zap.Int("matches", matches))

	return &core.DetectionScore{
		Method:     core.MethodContent,
		Score:      score,
		Confidence: confidence,
		Reason:     reason,
		Metadata:   map[string]string{"matches": fmt.Sprintf("%d", matches)},
	}, nil
}

// countPhrases counts distinct boilerplate phrases present in the body
func (a *ContentAnalyzer) countPhrases(body string) int {
	count := 0
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(body, phrase) {
			count++
		}
	}
	return count
}

// hasWrapperStructure reports whether the body carries designed-layout markers
func (a *ContentAnalyzer) hasWrapperStructure(body string) bool {
	for _, marker := range wrapperMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// linkDensity is the ratio of links to words in the body
func linkDensity(body string) float64 {
	words := len(strings.Fields(body))
	if words == 0 {
		return 0
	}
	links := strings.Count(body, "http://") + strings.Count(body, "https://")
	return float64(links) / float64(words)
}

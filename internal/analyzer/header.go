package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// bulkPlatformMarkers are header fragments left by bulk-mail platforms
var bulkPlatformMarkers = []string{
	"mailchimp",
	"sendgrid",
	"mailgun",
	"constantcontact",
	"hubspot",
	"sendinblue",
	"brevo",
	"campaign-monitor",
	"substack",
	"beehiiv",
	"mailerlite",
}

// newsletterLocalParts are sender local parts typical of list mail
var newsletterLocalParts = []string{
	"newsletter",
	"news",
	"digest",
	"updates",
	"noreply",
	"no-reply",
	"donotreply",
	"do-not-reply",
	"mailer",
	"notifications",
}

// newsletterNameWords are display-name words typical of list mail
var newsletterNameWords = []string{
	"newsletter",
	"digest",
	"weekly",
	"monthly",
	"bulletin",
	"roundup",
}

// HeaderAnalyzer scores newsletter indicators found in message headers:
// a List-Unsubscribe header, bulk-platform markers, and sender address
// or display-name patterns.
type HeaderAnalyzer struct {
	logger *zap.Logger
}

// NewHeaderAnalyzer creates a new header analyzer
func NewHeaderAnalyzer(logger *zap.Logger) *HeaderAnalyzer {
	return &HeaderAnalyzer{logger: logger}
}

// Method returns the heuristic tag
func (a *HeaderAnalyzer) Method() core.DetectionMethod {
	return core.MethodHeader
}

// Weight returns the static reliability weight
func (a *HeaderAnalyzer) Weight() float64 {
	return WeightHeader
}

// Analyze scores the email's headers
func (a *HeaderAnalyzer) Analyze(ctx context.Context, email *core.Email) (*core.DetectionScore, error) {
	score := 0.0
	indicators := 0
	reasons := make([]string, 0, 3)

	if email.Header("List-Unsubscribe") != "" || email.Header("List-Unsubscribe-Post") != "" {
		score += 0.6
		indicators++
		reasons = append(reasons, "list-unsubscribe header present")
	}

	if marker := a.bulkPlatformMarker(email); marker != "" {
		score += 0.3
		indicators++
		reasons = append(reasons, fmt.Sprintf("bulk-mail platform marker (%s)", marker))
	}

	if pattern := a.senderPattern(email); pattern != "" {
		score += 0.25
		indicators++
		reasons = append(reasons, fmt.Sprintf("newsletter sender pattern (%s)", pattern))
	}

	if score > 1.0 {
		score = 1.0
	}

	// Confidence rises with the number of corroborating indicators. A
	// header block with no list indicators at all is itself informative.
	var confidence float64
	reason := "no newsletter header indicators"
	if indicators == 0 {
		confidence = 0.7
	} else {
		confidence = 0.5 + 0.15*float64(indicators)
		if confidence > 0.95 {
			confidence = 0.95
		}
		reason = strings.Join(reasons, "; ")
	}

	a.logger.Debug("Header analysis complete",
		zap.String("email_id", email.ID),
		zap.Float64("score", score),
		zap.Int("indicators", indicators))

	return &core.DetectionScore{
		Method:     core.MethodHeader,
		Score:      score,
		Confidence: confidence,
		Reason:     reason,
		Metadata:   map[string]string{"indicators": fmt.Sprintf("%d", indicators)},
	}, nil
}

// bulkPlatformMarker returns the matched platform name, or ""
func (a *HeaderAnalyzer) bulkPlatformMarker(email *core.Email) string {
	precedence := strings.ToLower(email.Header("Precedence"))
	if precedence == "bulk" || precedence == "list" {
		return "precedence: " + precedence
	}
	if email.Header("List-ID") != "" {
		return "list-id"
	}
	for _, name := range []string{"X-Mailer", "X-Campaign", "X-Campaign-ID", "X-Report-Abuse", "Feedback-ID"} {
		value := strings.ToLower(email.Header(name))
		if value == "" {
			continue
		}
		for _, marker := range bulkPlatformMarkers {
			if strings.Contains(value, marker) {
				return marker
			}
		}
	}
	return ""
}

// senderPattern returns the matched sender pattern, or ""
func (a *HeaderAnalyzer) senderPattern(email *core.Email) string {
	from := strings.ToLower(email.From)
	local := from
	if at := strings.Index(from, "@"); at >= 0 {
		local = from[:at]
	}
	for _, part := range newsletterLocalParts {
		if local == part || strings.HasPrefix(local, part+"+") || strings.HasPrefix(local, part+".") {
			return part + "@"
		}
	}

	displayName := strings.ToLower(email.Header("From"))
	for _, word := range newsletterNameWords {
		if strings.Contains(displayName, word) {
			return word
		}
	}
	return ""
}

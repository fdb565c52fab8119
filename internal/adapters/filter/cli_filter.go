package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/utils"
	"go.uber.org/zap"
)

// CliFilter implements a command-line interface for newsletter detection
type CliFilter struct {
	service *core.DetectionService
	logger  *zap.Logger
	verbose bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *core.DetectionService, logger *zap.Logger, verbose bool) (*CliFilter, error) {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
	}, nil
}

// ProcessEmail processes an email and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", email.From)
	fmt.Printf("To: %s\n", email.To)
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Body length: %d bytes\n", len(email.Body))

	if f.verbose {
		preview := utils.TruncateText(email.Body, 500)
		if len(preview) < len(email.Body) {
			preview += "..."
		}
		fmt.Printf("\nBody preview:\n%s\n", preview)
	}

	fmt.Printf("\n")

	fmt.Printf("=== Analysis ===\n")
	startTime := time.Now()
	result, err := f.service.DetectNewsletter(ctx, email, nil)
	if err != nil {
		f.logger.Error("Failed to classify email", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Is newsletter: %t\n", result.IsNewsletter)
	fmt.Printf("Combined score: %.4f\n", result.CombinedScore)
	fmt.Printf("Needs verification: %t\n", result.NeedsVerification)
	for _, score := range result.Scores {
		fmt.Printf("  %-8s score=%.4f confidence=%.4f  %s\n", score.Method, score.Score, score.Confidence, score.Reason)
	}
	fmt.Printf("Processing time: %v\n", duration)

	return result, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}

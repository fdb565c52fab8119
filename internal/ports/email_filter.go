package ports

import (
	"context"

	"github.com/mikey/newsletter-filter/internal/core"
)

// EmailFilter defines the interface for a mail front end that feeds
// inbound messages through newsletter detection
type EmailFilter interface {
	// ProcessEmail classifies one email and returns the detection result
	ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}

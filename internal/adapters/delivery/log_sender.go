package delivery

import (
	"context"

	"go.uber.org/zap"
)

// LogSender logs messages instead of delivering them. Used in development
// and as the default when no delivery backend is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a new log-only sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	s.logger.Info("Email delivery (log only)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("html_bytes", len(htmlBody)),
		zap.Int("text_bytes", len(textBody)))
	return nil
}

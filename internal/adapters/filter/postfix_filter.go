package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/mikey/newsletter-filter/internal/feedback"
	"go.uber.org/zap"
)

// PostfixFilter implements a Postfix content filter that classifies
// inbound messages and stamps them with newsletter headers before
// re-injecting them
type PostfixFilter struct {
	service           *core.DetectionService
	feedback          *feedback.Service
	logger            *zap.Logger
	listenAddr        string
	server            *smtp.Server
	statusHeader      string
	scoreHeader       string
	reasonHeader      string
	postfixAddr       string
	postfixPort       int
	postfixEnabled    bool
	subjectPrefix     string
	modifySubject     bool
	verifyOnAmbiguous bool
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.DetectionService,
	feedbackService *feedback.Service,
	logger *zap.Logger,
	listenAddr string,
	statusHeader string,
	scoreHeader string,
	reasonHeader string,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	subjectPrefix string,
	modifySubject bool,
	verifyOnAmbiguous bool,
) *PostfixFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	if subjectPrefix == "" && modifySubject {
		subjectPrefix = "[Newsletter] "
	}

	return &PostfixFilter{
		service:           service,
		feedback:          feedbackService,
		logger:            logger,
		listenAddr:        listenAddr,
		statusHeader:      statusHeader,
		scoreHeader:       scoreHeader,
		reasonHeader:      reasonHeader,
		postfixAddr:       postfixAddr,
		postfixPort:       postfixPort,
		postfixEnabled:    postfixEnabled,
		subjectPrefix:     subjectPrefix,
		modifySubject:     modifySubject,
		verifyOnAmbiguous: verifyOnAmbiguous,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail processes an email and returns the detection result.
// This is mainly used for testing or direct API calls.
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.DetectionResult, error) {
	return f.service.DetectNewsletter(ctx, email, nil)
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := fmt.Sprintf("%s:%d", f.postfixAddr, f.postfixPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			// Continue with other recipients even if one fails
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	_, err = wc.Write(emailData)
	if err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
		// The email has already been accepted at this point
	}

	return nil
}

// summarizeReason condenses the per-method signals into a single header value
func summarizeReason(result *core.DetectionResult) string {
	parts := make([]string, 0, len(result.Scores))
	for _, score := range result.Scores {
		parts = append(parts, fmt.Sprintf("%s=%.2f", score.Method, score.Score))
	}
	return strings.Join(parts, ", ")
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for our filter)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.filter.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	textContent, err := extractTextFromMessage(msg)
	if err != nil {
		s.filter.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	email := &core.Email{
		ID:      uuid.NewString(),
		Headers: make(map[string][]string),
		Body:    textContent,
		From:    s.sender,
		To:      s.recipients,
	}

	for key, values := range msg.Header {
		email.Headers[key] = values

		if strings.EqualFold(key, "Subject") && len(values) > 0 {
			email.Subject = values[0]
		}
		if strings.EqualFold(key, "Message-Id") && len(values) > 0 {
			email.MessageID = values[0]
		}
	}

	senderDomain := email.SenderDomain()
	if senderDomain == "" {
		senderDomain = "unknown"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := s.filter.service.DetectNewsletter(ctx, email, nil)
	if err != nil {
		s.filter.logger.Error("Failed to classify email",
			zap.Error(err),
			zap.String("sender", email.From),
			zap.String("sender_domain", senderDomain))

		// Pass the email through unclassified rather than bouncing it
		result = &core.DetectionResult{
			EmailID:       email.ID,
			IsNewsletter:  false,
			CombinedScore: 0.0,
			AnalyzedAt:    time.Now(),
		}
	}

	status := "no"
	if result.IsNewsletter {
		status = "yes"
	}

	headers := map[string]string{
		s.filter.statusHeader: status,
		s.filter.scoreHeader:  fmt.Sprintf("%.4f", result.CombinedScore),
		s.filter.reasonHeader: summarizeReason(result),
	}
	order := []string{s.filter.statusHeader, s.filter.scoreHeader, s.filter.reasonHeader}

	modified := rawData
	if result.IsNewsletter && s.filter.modifySubject {
		modified = prefixSubject(modified, s.filter.subjectPrefix)
	}
	modified = insertHeaders(modified, headers, order)

	// Ambiguous verdicts queue a verification email to each recipient
	if result.NeedsVerification && s.filter.verifyOnAmbiguous && s.filter.feedback != nil {
		for _, recipient := range s.recipients {
			if _, err := s.filter.feedback.RequestVerification(ctx, recipient, email, result.CombinedScore); err != nil {
				s.filter.logger.Warn("Failed to queue verification request",
					zap.String("recipient", recipient),
					zap.Error(err))
			}
		}
	}

	if s.filter.postfixEnabled {
		if err := s.filter.sendToPostfix(s.sender, s.recipients, modified); err != nil {
			s.filter.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", email.From))
			return err
		}
	} else {
		s.filter.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	s.filter.logger.Info("Processed email",
		zap.String("from", email.From),
		zap.String("sender_domain", senderDomain),
		zap.Bool("is_newsletter", result.IsNewsletter),
		zap.Float64("score", result.CombinedScore),
		zap.Bool("needs_verification", result.NeedsVerification))

	return nil
}

// Logout handles SMTP logout (not needed for our filter)
func (s *smtpSession) Logout() error {
	return nil
}

package core

import (
	"strings"
	"time"
)

// Email represents an inbound email message
type Email struct {
	ID        string
	MessageID string
	From      string
	To        []string
	Subject   string
	Body      string
	Headers   map[string][]string
}

// SenderDomain returns the domain part of the sender address, lowercased
func (e *Email) SenderDomain() string {
	return DomainOf(e.From)
}

// DomainOf extracts the lowercased domain part of an email address
func DomainOf(address string) string {
	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// Header returns the first value of a header, case-insensitively
func (e *Email) Header(name string) string {
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// DetectionMethod identifies one detection heuristic
type DetectionMethod string

const (
	MethodHeader   DetectionMethod = "header"
	MethodContent  DetectionMethod = "content"
	MethodSender   DetectionMethod = "sender"
	MethodFeedback DetectionMethod = "feedback"
)

// MethodOrder is the canonical ordering of scores in a DetectionResult
var MethodOrder = []DetectionMethod{MethodHeader, MethodContent, MethodSender, MethodFeedback}

// DetectionScore is the output of a single analyzer for one email
type DetectionScore struct {
	Method     DetectionMethod
	Score      float64
	Confidence float64
	Reason     string
	Metadata   map[string]string
}

// DetectionResult is the aggregated verdict for one email
type DetectionResult struct {
	EmailID           string
	IsNewsletter      bool
	CombinedScore     float64
	NeedsVerification bool
	Scores            []DetectionScore
	AnalyzedAt        time.Time
}

// FeedbackType classifies a feedback event
type FeedbackType string

const (
	FeedbackConfirm   FeedbackType = "confirm"
	FeedbackReject    FeedbackType = "reject"
	FeedbackUncertain FeedbackType = "uncertain"
	FeedbackVerify    FeedbackType = "verify"
	FeedbackIgnore    FeedbackType = "ignore"
)

// ValidFeedbackType reports whether t is a known feedback type
func ValidFeedbackType(t FeedbackType) bool {
	switch t {
	case FeedbackConfirm, FeedbackReject, FeedbackUncertain, FeedbackVerify, FeedbackIgnore:
		return true
	}
	return false
}

// FeedbackItem is one append-only feedback event submitted by a user
type FeedbackItem struct {
	ID              string
	UserID          string
	EmailID         string
	MessageID       string
	Sender          string
	SenderDomain    string
	Subject         string
	Type            FeedbackType
	Priority        int
	DetectionResult bool    // the model's verdict at submission time
	Confidence      float64 // the model's combined score at submission time
	Features        map[string]float64
	Timestamp       time.Time
	Processed       bool
	ProcessedAt     *time.Time
}

// UserFeedback is the per-user aggregate of explicit sender decisions
type UserFeedback struct {
	UserID           string
	ConfirmedSenders map[string]bool
	RejectedSenders  map[string]bool
	TrustedDomains   map[string]bool
	BlockedDomains   map[string]bool
}

// NewUserFeedback creates an empty feedback aggregate for a user
func NewUserFeedback(userID string) *UserFeedback {
	return &UserFeedback{
		UserID:           userID,
		ConfirmedSenders: make(map[string]bool),
		RejectedSenders:  make(map[string]bool),
		TrustedDomains:   make(map[string]bool),
		BlockedDomains:   make(map[string]bool),
	}
}

// VerificationStatus is the lifecycle state of a verification request.
// Pending is the only non-terminal state.
type VerificationStatus string

const (
	StatusPending   VerificationStatus = "pending"
	StatusConfirmed VerificationStatus = "confirmed"
	StatusRejected  VerificationStatus = "rejected"
	StatusExpired   VerificationStatus = "expired"
)

// Terminal reports whether the status permits no further transitions
func (s VerificationStatus) Terminal() bool {
	return s != StatusPending
}

// VerificationRequest is an out-of-band ask to the user to resolve an
// ambiguous detection. The token is the sole external handle.
type VerificationRequest struct {
	ID               string
	UserID           string
	EmailID          string
	MessageID        string
	Sender           string
	SenderDomain     string
	Subject          string
	Confidence       float64
	Status           VerificationStatus
	GeneratedAt      time.Time
	ExpiresAt        time.Time
	RespondedAt      *time.Time
	UserResponse     *bool
	RequestSentCount int
	Token            string
}

// SenderReputation is the persisted prior that a sender or domain key
// sends newsletters. Score defaults to neutral 0.5 for unseen keys.
type SenderReputation struct {
	Key          string
	Score        float64
	Observations int
	UpdatedAt    time.Time
}

// NeutralReputation is the score assumed for keys with no history
const NeutralReputation = 0.5

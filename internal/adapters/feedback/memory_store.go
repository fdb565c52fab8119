package feedback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the FeedbackStore
// interface. Items are append-only; only the processed flag mutates.
type MemoryStore struct {
	items  []*core.FeedbackItem
	byID   map[string]*core.FeedbackItem
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory feedback store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*core.FeedbackItem),
		logger: logger,
	}
}

// Save appends a feedback item
func (s *MemoryStore) Save(ctx context.Context, item *core.FeedbackItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *item
	s.items = append(s.items, &copied)
	s.byID[copied.ID] = &copied
	return nil
}

// GetForUser returns a user's feedback, newest first
func (s *MemoryStore) GetForUser(ctx context.Context, userID string) ([]*core.FeedbackItem, error) {
	return s.filter(func(item *core.FeedbackItem) bool {
		return item.UserID == userID
	}, true, 0), nil
}

// GetForEmail returns feedback for an email, newest first
func (s *MemoryStore) GetForEmail(ctx context.Context, emailID string) ([]*core.FeedbackItem, error) {
	return s.filter(func(item *core.FeedbackItem) bool {
		return item.EmailID == emailID
	}, true, 0), nil
}

// GetForSender returns feedback about a sender, newest first
func (s *MemoryStore) GetForSender(ctx context.Context, sender string) ([]*core.FeedbackItem, error) {
	return s.filter(func(item *core.FeedbackItem) bool {
		return item.Sender == sender
	}, true, 0), nil
}

// GetUnprocessed returns unprocessed items, oldest first
func (s *MemoryStore) GetUnprocessed(ctx context.Context, limit int) ([]*core.FeedbackItem, error) {
	return s.filter(func(item *core.FeedbackItem) bool {
		return !item.Processed
	}, false, limit), nil
}

// GetUncertain returns unprocessed items below maxConfidence, oldest first
func (s *MemoryStore) GetUncertain(ctx context.Context, maxConfidence float64, limit int) ([]*core.FeedbackItem, error) {
	return s.filter(func(item *core.FeedbackItem) bool {
		return !item.Processed && item.Confidence < maxConfidence
	}, false, limit), nil
}

// MarkProcessed flips processed to true. Returns false for unknown ids.
func (s *MemoryStore) MarkProcessed(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	if !item.Processed {
		now := time.Now()
		item.Processed = true
		item.ProcessedAt = &now
	}
	return true, nil
}

// ListUserIDs returns the distinct users with stored feedback
func (s *MemoryStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	users := make([]string, 0)
	for _, item := range s.items {
		if !seen[item.UserID] {
			seen[item.UserID] = true
			users = append(users, item.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

// Stop is a no-op for the memory store
func (s *MemoryStore) Stop() {}

// filter copies matching items sorted by timestamp
func (s *MemoryStore) filter(match func(*core.FeedbackItem) bool, newestFirst bool, limit int) []*core.FeedbackItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.FeedbackItem, 0)
	for _, item := range s.items {
		if match(item) {
			copied := *item
			out = append(out, &copied)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

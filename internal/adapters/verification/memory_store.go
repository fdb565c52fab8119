package verification

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the VerificationStore
// interface. The mutex makes CreateOrGetPending a single atomic
// check-or-insert, so two concurrent generators for the same
// (userID, emailID) cannot both create a pending request.
type MemoryStore struct {
	byID    map[string]*core.VerificationRequest
	byToken map[string]*core.VerificationRequest
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory verification store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*core.VerificationRequest),
		byToken: make(map[string]*core.VerificationRequest),
		logger:  logger,
	}
}

// CreateOrGetPending returns the existing pending request for
// (userID, emailID) or inserts req as the pending one
func (s *MemoryStore) CreateOrGetPending(ctx context.Context, req *core.VerificationRequest) (*core.VerificationRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.UserID == req.UserID && existing.EmailID == req.EmailID && existing.Status == core.StatusPending {
			copied := *existing
			return &copied, false, nil
		}
	}

	copied := *req
	s.byID[copied.ID] = &copied
	s.byToken[copied.Token] = &copied

	result := copied
	return &result, true, nil
}

// GetByID retrieves a request by id
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*core.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

// GetByToken retrieves a request by its token
func (s *MemoryStore) GetByToken(ctx context.Context, token string) (*core.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.byToken[token]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

// Update persists changed fields of an existing request
func (s *MemoryStore) Update(ctx context.Context, req *core.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[req.ID]
	if !ok {
		return core.ErrNotFound
	}

	delete(s.byToken, existing.Token)
	copied := *req
	s.byID[copied.ID] = &copied
	s.byToken[copied.Token] = &copied
	return nil
}

// ListExpiredPending returns pending requests past their expiry
func (s *MemoryStore) ListExpiredPending(ctx context.Context, now time.Time) ([]*core.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.VerificationRequest, 0)
	for _, req := range s.byID {
		if req.Status == core.StatusPending && now.After(req.ExpiresAt) {
			copied := *req
			out = append(out, &copied)
		}
	}
	return out, nil
}

// HasRequestForEmail reports whether any request exists for (userID, emailID)
func (s *MemoryStore) HasRequestForEmail(ctx context.Context, userID, emailID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.byID {
		if req.UserID == userID && req.EmailID == emailID {
			return true, nil
		}
	}
	return false, nil
}

// Stop is a no-op for the memory store
func (s *MemoryStore) Stop() {}

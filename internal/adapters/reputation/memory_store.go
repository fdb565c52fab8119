package reputation

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the ReputationStore
// interface. The mutex serializes the read-modify-write in Nudge so
// concurrent improver calls on the same key cannot lose updates.
type MemoryStore struct {
	entries map[string]*core.SenderReputation
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory reputation store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*core.SenderReputation),
		logger:  logger,
	}
}

// Get retrieves the reputation for a key
func (s *MemoryStore) Get(ctx context.Context, key string) (*core.SenderReputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rep, ok := s.entries[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *rep
	return &copied, nil
}

// Set stores a reputation entry
func (s *MemoryStore) Set(ctx context.Context, rep *core.SenderReputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rep
	s.entries[rep.Key] = &copied
	return nil
}

// Nudge atomically moves the key's score toward target by rate
func (s *MemoryStore) Nudge(ctx context.Context, key string, target, rate float64) (*core.SenderReputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, ok := s.entries[key]
	if !ok {
		rep = &core.SenderReputation{Key: key, Score: core.NeutralReputation}
		s.entries[key] = rep
	}

	rep.Score = clamp01(rep.Score + (target-rep.Score)*rate)
	rep.Observations++
	rep.UpdatedAt = time.Now()

	copied := *rep
	return &copied, nil
}

// Stop is a no-op for the memory store
func (s *MemoryStore) Stop() {}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

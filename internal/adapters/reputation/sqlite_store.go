package reputation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the ReputationStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite reputation store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sender_reputation (
			sender_key TEXT PRIMARY KEY,
			score REAL NOT NULL,
			observations INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get retrieves the reputation for a key
func (s *SQLiteStore) Get(ctx context.Context, key string) (*core.SenderReputation, error) {
	var rep core.SenderReputation
	var updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT sender_key, score, observations, updated_at
		FROM sender_reputation
		WHERE sender_key = ?
	`, key).Scan(&rep.Key, &rep.Score, &rep.Observations, &updatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query reputation: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rep.UpdatedAt = t
	}
	return &rep, nil
}

// Set stores a reputation entry
func (s *SQLiteStore) Set(ctx context.Context, rep *core.SenderReputation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sender_reputation (sender_key, score, observations, updated_at)
		VALUES (?, ?, ?, ?)
	`, rep.Key, rep.Score, rep.Observations, rep.UpdatedAt.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to upsert reputation: %w", err)
	}
	return nil
}

// Nudge atomically moves the key's score toward target by rate. The
// arithmetic runs inside the upsert so concurrent callers serialize on
// the row rather than racing a read-modify-write in Go.
func (s *SQLiteStore) Nudge(ctx context.Context, key string, target, rate float64) (*core.SenderReputation, error) {
	now := time.Now().Format(time.RFC3339)
	seed := clamp01(core.NeutralReputation + (target-core.NeutralReputation)*rate)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_reputation (sender_key, score, observations, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(sender_key) DO UPDATE SET
			score = min(1.0, max(0.0, score + (? - score) * ?)),
			observations = observations + 1,
			updated_at = ?
	`, key, seed, now, target, rate, now)

	if err != nil {
		return nil, fmt.Errorf("failed to nudge reputation: %w", err)
	}

	return s.Get(ctx, key)
}

// Stop closes the database connection
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite reputation store", zap.Error(err))
	}
}

package reputation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the ReputationStore interface
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL reputation store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sender_reputation (
			sender_key VARCHAR(255) PRIMARY KEY,
			score DOUBLE NOT NULL,
			observations INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// Get retrieves the reputation for a key
func (s *MySQLStore) Get(ctx context.Context, key string) (*core.SenderReputation, error) {
	var rep core.SenderReputation
	var updatedAt sql.NullTime

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

	if updatedAt.Valid {
		rep.UpdatedAt = updatedAt.Time
	}
	return &rep, nil
}

// Set stores a reputation entry
func (s *MySQLStore) Set(ctx context.Context, rep *core.SenderReputation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_reputation (sender_key, score, observations, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE score = VALUES(score), observations = VALUES(observations), updated_at = VALUES(updated_at)
	`, rep.Key, rep.Score, rep.Observations, rep.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert reputation: %w", err)
	}
	return nil
}

// Nudge atomically moves the key's score toward target by rate using a
// single upsert so concurrent callers serialize on the row
func (s *MySQLStore) Nudge(ctx context.Context, key string, target, rate float64) (*core.SenderReputation, error) {
	now := time.Now()
	seed := clamp01(core.NeutralReputation + (target-core.NeutralReputation)*rate)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_reputation (sender_key, score, observations, updated_at)
		VALUES (?, ?, 1, ?)
		ON DUPLICATE KEY UPDATE
			score = LEAST(1.0, GREATEST(0.0, score + (? - score) * ?)),
			observations = observations + 1,
			updated_at = ?
	`, key, seed, now, target, rate, now)

	if err != nil {
		return nil, fmt.Errorf("failed to nudge reputation: %w", err)
	}

	return s.Get(ctx, key)
}

// Stop closes the database connection
func (s *MySQLStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL reputation store", zap.Error(err))
	}
}

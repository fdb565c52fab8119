package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the FeedbackStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite feedback store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			email_id TEXT NOT NULL,
			message_id TEXT,
			sender TEXT,
			sender_domain TEXT,
			subject TEXT,
			type TEXT NOT NULL,
			priority INTEGER DEFAULT 0,
			detection_result BOOLEAN,
			confidence REAL,
			features TEXT,
			timestamp TIMESTAMP,
			processed BOOLEAN DEFAULT 0,
			processed_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_email ON feedback(email_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_sender ON feedback(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_processed ON feedback(processed, timestamp)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

const feedbackColumns = `id, user_id, email_id, message_id, sender, sender_domain, subject,
	type, priority, detection_result, confidence, features, timestamp, processed, processed_at`

// Save appends a feedback item
func (s *SQLiteStore) Save(ctx context.Context, item *core.FeedbackItem) error {
	features, err := json.Marshal(item.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	var processedAt interface{}
	if item.ProcessedAt != nil {
		processedAt = item.ProcessedAt.Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.UserID, item.EmailID, item.MessageID, item.Sender, item.SenderDomain,
		item.Subject, string(item.Type), item.Priority, item.DetectionResult, item.Confidence,
		string(features), item.Timestamp.Format(time.RFC3339Nano), item.Processed, processedAt)

	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// GetForUser returns a user's feedback, newest first
func (s *SQLiteStore) GetForUser(ctx context.Context, userID string) ([]*core.FeedbackItem, error) {
	return s.query(ctx, `
		SELECT `+feedbackColumns+` FROM feedback
		WHERE user_id = ? ORDER BY timestamp DESC
	`, userID)
}

// GetForEmail returns feedback for an email, newest first
func (s *SQLiteStore) GetForEmail(ctx context.Context, emailID string) ([]*core.FeedbackItem, error) {
	return s.query(ctx, `
		SELECT `+feedbackColumns+` FROM feedback
		WHERE email_id = ? ORDER BY timestamp DESC
	`, emailID)
}

// GetForSender returns feedback about a sender, newest first
func (s *SQLiteStore) GetForSender(ctx context.Context, sender string) ([]*core.FeedbackItem, error) {
	return s.query(ctx, `
		SELECT `+feedbackColumns+` FROM feedback
		WHERE sender = ? ORDER BY timestamp DESC
	`, sender)
}

// GetUnprocessed returns unprocessed items, oldest first
func (s *SQLiteStore) GetUnprocessed(ctx context.Context, limit int) ([]*core.FeedbackItem, error) {
	return s.query(ctx, `
		SELECT `+feedbackColumns+` FROM feedback
		WHERE processed = 0 ORDER BY timestamp ASC LIMIT ?
	`, queryLimit(limit))
}

// GetUncertain returns unprocessed items below maxConfidence, oldest first
func (s *SQLiteStore) GetUncertain(ctx context.Context, maxConfidence float64, limit int) ([]*core.FeedbackItem, error) {
	return s.query(ctx, `
		SELECT `+feedbackColumns+` FROM feedback
		WHERE processed = 0 AND confidence < ? ORDER BY timestamp ASC LIMIT ?
	`, maxConfidence, queryLimit(limit))
}

// MarkProcessed flips processed to true. Returns false for unknown ids.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE feedback SET processed = 1, processed_at = ?
		WHERE id = ? AND processed = 0
	`, time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark feedback processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Distinguish an already-processed item from an unknown id
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM feedback WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up feedback: %w", err)
	}
	return true, nil
}

// ListUserIDs returns the distinct users with stored feedback
func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM feedback ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// Stop closes the database connection
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite feedback store", zap.Error(err))
	}
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...interface{}) ([]*core.FeedbackItem, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	items := make([]*core.FeedbackItem, 0)
	for rows.Next() {
		item, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanFeedback(rows *sql.Rows) (*core.FeedbackItem, error) {
	var item core.FeedbackItem
	var feedbackType, features, timestamp string
	var processedAt sql.NullString

	err := rows.Scan(&item.ID, &item.UserID, &item.EmailID, &item.MessageID, &item.Sender,
		&item.SenderDomain, &item.Subject, &feedbackType, &item.Priority, &item.DetectionResult,
		&item.Confidence, &features, &timestamp, &item.Processed, &processedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}

	item.Type = core.FeedbackType(feedbackType)
	if features != "" {
		if err := json.Unmarshal([]byte(features), &item.Features); err != nil {
			return nil, fmt.Errorf("failed to decode features: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		item.Timestamp = t
	}
	if processedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, processedAt.String); err == nil {
			item.ProcessedAt = &t
		}
	}
	return &item, nil
}

// queryLimit maps a non-positive limit to an effectively unbounded one
func queryLimit(limit int) int {
	if limit <= 0 {
		return 1 << 30
	}
	return limit
}

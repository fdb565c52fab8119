package verification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/newsletter-filter/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the VerificationStore
// interface. A unique index on the token and a partial unique index on
// pending (user_id, email_id) pairs enforce the store's invariants at
// the database rather than in Go.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite verification store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verification_requests (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			email_id TEXT NOT NULL,
			message_id TEXT,
			sender TEXT,
			sender_domain TEXT,
			subject TEXT,
			confidence REAL,
			status TEXT NOT NULL,
			generated_at TIMESTAMP,
			expires_at TIMESTAMP,
			responded_at TIMESTAMP,
			user_response BOOLEAN,
			request_sent_count INTEGER DEFAULT 1,
			token TEXT NOT NULL UNIQUE
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_verification_pending
			ON verification_requests(user_id, email_id) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_verification_expiry
			ON verification_requests(status, expires_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

const requestColumns = `id, user_id, email_id, message_id, sender, sender_domain, subject,
	confidence, status, generated_at, expires_at, responded_at, user_response, request_sent_count, token`

// CreateOrGetPending returns the existing pending request for
// (userID, emailID) or inserts req as the pending one. The partial
// unique index makes the check-or-insert race-free.
func (s *SQLiteStore) CreateOrGetPending(ctx context.Context, req *core.VerificationRequest) (*core.VerificationRequest, bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO verification_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)
	`, req.ID, req.UserID, req.EmailID, req.MessageID, req.Sender, req.SenderDomain, req.Subject,
		req.Confidence, string(req.Status), req.GeneratedAt.Format(time.RFC3339Nano),
		req.ExpiresAt.Format(time.RFC3339Nano), req.RequestSentCount, req.Token)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert verification request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		copied := *req
		return &copied, true, nil
	}

	existing, err := s.queryOne(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE user_id = ? AND email_id = ? AND status = 'pending'
	`, req.UserID, req.EmailID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByID retrieves a request by id
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*core.VerificationRequest, error) {
	return s.queryOne(ctx, `
		SELECT `+requestColumns+` FROM verification_requests WHERE id = ?
	`, id)
}

// GetByToken retrieves a request by its token
func (s *SQLiteStore) GetByToken(ctx context.Context, token string) (*core.VerificationRequest, error) {
	return s.queryOne(ctx, `
		SELECT `+requestColumns+` FROM verification_requests WHERE token = ?
	`, token)
}

// Update persists changed fields of an existing request
func (s *SQLiteStore) Update(ctx context.Context, req *core.VerificationRequest) error {
	var respondedAt interface{}
	if req.RespondedAt != nil {
		respondedAt = req.RespondedAt.Format(time.RFC3339Nano)
	}
	var userResponse interface{}
	if req.UserResponse != nil {
		userResponse = *req.UserResponse
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE verification_requests
		SET status = ?, expires_at = ?, responded_at = ?, user_response = ?, request_sent_count = ?
		WHERE id = ?
	`, string(req.Status), req.ExpiresAt.Format(time.RFC3339Nano), respondedAt, userResponse,
		req.RequestSentCount, req.ID)
	if err != nil {
		return fmt.Errorf("failed to update verification request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListExpiredPending returns pending requests past their expiry
func (s *SQLiteStore) ListExpiredPending(ctx context.Context, now time.Time) ([]*core.VerificationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE status = 'pending' AND expires_at < ?
	`, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to query expired requests: %w", err)
	}
	defer rows.Close()

	out := make([]*core.VerificationRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// HasRequestForEmail reports whether any request exists for (userID, emailID)
func (s *SQLiteStore) HasRequestForEmail(ctx context.Context, userID, emailID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM verification_requests WHERE user_id = ? AND email_id = ? LIMIT 1
	`, userID, emailID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query verification requests: %w", err)
	}
	return true, nil
}

// Stop closes the database connection
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite verification store", zap.Error(err))
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLiteStore) queryOne(ctx context.Context, q string, args ...interface{}) (*core.VerificationRequest, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func scanRequest(row rowScanner) (*core.VerificationRequest, error) {
	var req core.VerificationRequest
	var status, generatedAt, expiresAt string
	var respondedAt sql.NullString
	var userResponse sql.NullBool

	err := row.Scan(&req.ID, &req.UserID, &req.EmailID, &req.MessageID, &req.Sender,
		&req.SenderDomain, &req.Subject, &req.Confidence, &status, &generatedAt, &expiresAt,
		&respondedAt, &userResponse, &req.RequestSentCount, &req.Token)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan verification request: %w", err)
	}

	req.Status = core.VerificationStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, generatedAt); err == nil {
		req.GeneratedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, expiresAt); err == nil {
		req.ExpiresAt = t
	}
	if respondedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, respondedAt.String); err == nil {
			req.RespondedAt = &t
		}
	}
	if userResponse.Valid {
		v := userResponse.Bool
		req.UserResponse = &v
	}
	return &req, nil
}

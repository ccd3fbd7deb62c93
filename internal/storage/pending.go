package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/producthub/producthub/internal/models"
)

// ErrNoPending is returned by Take when the session has nothing waiting
var ErrNoPending = errors.New("no pending submission")

// PendingStore keeps at most one deferred submission per browser session
type PendingStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewPendingStore creates a store whose entries expire after ttl
func NewPendingStore(db *sql.DB, ttl time.Duration) *PendingStore {
	return &PendingStore{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// Put captures sub for sessionID, replacing any earlier pending submission
func (s *PendingStore) Put(ctx context.Context, sessionID string, sub *models.Submission) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	now := s.now()
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}

	query := `
		INSERT INTO pending_submissions
			(session_id, id, brand_name, company, season, file_name, content_type, content, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			id = excluded.id,
			brand_name = excluded.brand_name,
			company = excluded.company,
			season = excluded.season,
			file_name = excluded.file_name,
			content_type = excluded.content_type,
			content = excluded.content,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`

	_, err := s.db.ExecContext(ctx, query,
		sessionID,
		sub.ID,
		sub.BrandName,
		string(sub.Company),
		sub.Season,
		sub.FileName,
		sub.ContentType,
		sub.Content,
		sub.CreatedAt.UnixMilli(),
		now.Add(s.ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending submission: %w", err)
	}

	return nil
}

// Take removes and returns the pending submission for sessionID in one
// transaction, so a submission is handed out at most once. Expired entries
// are deleted and reported as ErrNoPending.
func (s *PendingStore) Take(ctx context.Context, sessionID string) (*models.Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		sub       models.Submission
		company   string
		createdAt int64
		expiresAt int64
	)
	query := `
		SELECT id, brand_name, company, season, file_name, content_type, content, created_at, expires_at
		FROM pending_submissions
		WHERE session_id = ?
	`
	err = tx.QueryRowContext(ctx, query, sessionID).Scan(
		&sub.ID,
		&sub.BrandName,
		&company,
		&sub.Season,
		&sub.FileName,
		&sub.ContentType,
		&sub.Content,
		&createdAt,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending submission: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_submissions WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("failed to delete pending submission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit pending submission take: %w", err)
	}

	if s.now().UnixMilli() >= expiresAt {
		return nil, ErrNoPending
	}

	sub.Company = models.Company(company)
	sub.CreatedAt = time.UnixMilli(createdAt)
	return &sub, nil
}

// Has reports whether an unexpired submission waits for sessionID
func (s *PendingStore) Has(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_submissions WHERE session_id = ? AND expires_at > ?`,
		sessionID, s.now().UnixMilli(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check pending submission: %w", err)
	}
	return n > 0, nil
}

// Discard drops the pending submission for sessionID, if any
func (s *PendingStore) Discard(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_submissions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to discard pending submission: %w", err)
	}
	return nil
}

// PruneExpired deletes every expired entry and returns how many were removed
func (s *PendingStore) PruneExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_submissions WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune pending submissions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

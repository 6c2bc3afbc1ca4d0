package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/veilworld/veilworld/internal/platform/storage/sqlitemigrate"
	"github.com/veilworld/veilworld/internal/services/actions/domain"
	"github.com/veilworld/veilworld/internal/services/actions/storage"
	"github.com/veilworld/veilworld/internal/services/actions/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed action queue persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens an action queue store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// OpenDB wraps an existing database handle and applies migrations.
func OpenDB(sqlDB *sql.DB) (*Store, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Enqueue persists a newly authorized request in queued state. A second
// in-flight request for the same (post, kind) key fails with
// ErrDuplicateKey via the partial unique index.
func (s *Store) Enqueue(ctx context.Context, request domain.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := domain.ValidateRequest(request); err != nil {
		return err
	}
	if strings.TrimSpace(request.ID) == "" {
		return fmt.Errorf("request id is required")
	}
	now := request.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO action_requests (
	id, post_id, kind, as_reply, credential_id, proof, signature,
	status, attempts, last_error, next_attempt_at, lease_expires_at,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, '', 0, 0, ?, ?)
`,
		request.ID,
		request.PostID,
		string(request.Kind),
		boolToInt(request.AsReply),
		request.CredentialID,
		request.Proof,
		request.Signature,
		string(domain.StatusQueued),
		now.UTC().UnixMilli(),
		now.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("enqueue request: %w", err)
	}
	return nil
}

// Lease claims the next ready request for execution.
func (s *Store) Lease(ctx context.Context, now time.Time, leaseTTL time.Duration) (domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return domain.Request{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Request{}, fmt.Errorf("storage is not configured")
	}
	nowMillis := now.UTC().UnixMilli()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, fmt.Errorf("begin lease transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
SELECT id, post_id, kind, as_reply, credential_id, proof, signature,
	status, attempts, last_error, created_at, updated_at
FROM action_requests
WHERE (status = ? AND next_attempt_at <= ?)
	OR (status = ? AND lease_expires_at <= ?)
ORDER BY next_attempt_at ASC, created_at ASC
LIMIT 1
`, string(domain.StatusQueued), nowMillis, string(domain.StatusExecuting), nowMillis)

	request, err := scanRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Request{}, storage.ErrNotFound
		}
		return domain.Request{}, fmt.Errorf("select ready request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE action_requests
SET status = ?, attempts = attempts + 1, lease_expires_at = ?, updated_at = ?
WHERE id = ?
`, string(domain.StatusExecuting), now.Add(leaseTTL).UTC().UnixMilli(), nowMillis, request.ID); err != nil {
		return domain.Request{}, fmt.Errorf("claim request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, fmt.Errorf("commit lease: %w", err)
	}

	request.Status = domain.StatusExecuting
	request.Attempts++
	request.UpdatedAt = time.UnixMilli(nowMillis).UTC()
	return request, nil
}

// MarkCompleted finalizes a request after the external side effect happened.
func (s *Store) MarkCompleted(ctx context.Context, requestID string, now time.Time) error {
	return s.finalize(ctx, requestID, domain.StatusCompleted, "", now)
}

// MarkFailed terminally fails a request; the row stays for operator
// visibility but no longer blocks the (post, kind) key.
func (s *Store) MarkFailed(ctx context.Context, requestID string, lastError string, now time.Time) error {
	return s.finalize(ctx, requestID, domain.StatusFailed, lastError, now)
}

func (s *Store) finalize(ctx context.Context, requestID string, status domain.Status, lastError string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE action_requests
SET status = ?, last_error = ?, lease_expires_at = 0, updated_at = ?
WHERE id = ?
`, string(status), strings.TrimSpace(lastError), now.UTC().UnixMilli(), strings.TrimSpace(requestID))
	if err != nil {
		return fmt.Errorf("finalize request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize request rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Requeue returns a leased request to queued state for a later attempt.
func (s *Store) Requeue(ctx context.Context, requestID string, lastError string, notBefore time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE action_requests
SET status = ?, last_error = ?, next_attempt_at = ?, lease_expires_at = 0, updated_at = ?
WHERE id = ?
`,
		string(domain.StatusQueued),
		strings.TrimSpace(lastError),
		notBefore.UTC().UnixMilli(),
		time.Now().UTC().UnixMilli(),
		strings.TrimSpace(requestID),
	)
	if err != nil {
		return fmt.Errorf("requeue request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue request rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetRequest loads one request by identifier.
func (s *Store) GetRequest(ctx context.Context, requestID string) (domain.Request, error) {
	if err := ctx.Err(); err != nil {
		return domain.Request{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Request{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, post_id, kind, as_reply, credential_id, proof, signature,
	status, attempts, last_error, created_at, updated_at
FROM action_requests
WHERE id = ?
`, strings.TrimSpace(requestID))

	request, err := scanRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Request{}, storage.ErrNotFound
		}
		return domain.Request{}, fmt.Errorf("get request: %w", err)
	}
	return request, nil
}

func scanRequest(scan func(dest ...any) error) (domain.Request, error) {
	var request domain.Request
	var kind, status string
	var asReply int
	var createdAt, updatedAt int64
	if err := scan(
		&request.ID,
		&request.PostID,
		&kind,
		&asReply,
		&request.CredentialID,
		&request.Proof,
		&request.Signature,
		&status,
		&request.Attempts,
		&request.LastError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Request{}, err
	}
	request.Kind = domain.Kind(kind)
	request.Status = domain.Status(status)
	request.AsReply = asReply != 0
	request.CreatedAt = time.UnixMilli(createdAt).UTC()
	request.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return request, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

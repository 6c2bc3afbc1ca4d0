package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/veilworld/veilworld/internal/platform/storage/sqlitemigrate"
	"github.com/veilworld/veilworld/internal/services/vault/domain"
	"github.com/veilworld/veilworld/internal/services/vault/storage"
	"github.com/veilworld/veilworld/internal/services/vault/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed vault and credential persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a vault SQLite store and applies migrations.
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

// OpenDB wraps an existing database handle and applies migrations. The API
// service shares one SQLite file between vault and action storage.
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

// PutVault persists one vault record.
func (s *Store) PutVault(ctx context.Context, vault domain.Vault) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := domain.ValidateVault(vault); err != nil {
		return err
	}
	createdAt := vault.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO vaults (id, commitment, public_key, address, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		vault.ID,
		vault.Commitment,
		[]byte(vault.PublicKey),
		strings.ToLower(vault.Address),
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put vault: %w", err)
	}
	return nil
}

// GetVault loads one vault by identifier.
func (s *Store) GetVault(ctx context.Context, vaultID string) (domain.Vault, error) {
	if err := ctx.Err(); err != nil {
		return domain.Vault{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Vault{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, commitment, public_key, address, created_at
FROM vaults
WHERE id = ?
`, strings.TrimSpace(vaultID))

	var vault domain.Vault
	var publicKey []byte
	var createdAt int64
	if err := row.Scan(&vault.ID, &vault.Commitment, &publicKey, &vault.Address, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Vault{}, storage.ErrNotFound
		}
		return domain.Vault{}, fmt.Errorf("get vault: %w", err)
	}
	vault.PublicKey = publicKey
	vault.CreatedAt = time.UnixMilli(createdAt).UTC()
	return vault, nil
}

// PutCredential persists one credential record.
func (s *Store) PutCredential(ctx context.Context, credential domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := domain.ValidateCredential(credential); err != nil {
		return err
	}
	createdAt := credential.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var verifiedAt any
	if credential.VerifiedAt != nil {
		verifiedAt = credential.VerifiedAt.UTC().UnixMilli()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO credentials (id, vault_id, kind, chain_id, token_address, claimed_balance, verified_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		credential.ID,
		credential.VaultID,
		credential.Kind,
		credential.Metadata.ChainID,
		strings.ToLower(credential.Metadata.TokenAddress),
		credential.Metadata.Balance.String(),
		verifiedAt,
		createdAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// GetCredential loads one credential by identifier.
func (s *Store) GetCredential(ctx context.Context, credentialID string) (domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Credential{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, vault_id, kind, chain_id, token_address, claimed_balance, verified_at, created_at
FROM credentials
WHERE id = ?
`, strings.TrimSpace(credentialID))

	credential, err := scanCredential(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Credential{}, storage.ErrNotFound
		}
		return domain.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	return credential, nil
}

// ListCredentials lists a vault's credentials, newest first.
func (s *Store) ListCredentials(ctx context.Context, vaultID string) ([]domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, vault_id, kind, chain_id, token_address, claimed_balance, verified_at, created_at
FROM credentials
WHERE vault_id = ?
ORDER BY created_at DESC, id DESC
`, strings.TrimSpace(vaultID))
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []domain.Credential
	for rows.Next() {
		credential, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return credentials, nil
}

// SetVerifiedAt stamps a credential's verification timestamp.
func (s *Store) SetVerifiedAt(ctx context.Context, credentialID string, verifiedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE credentials SET verified_at = ? WHERE id = ?
`, verifiedAt.UTC().UnixMilli(), strings.TrimSpace(credentialID))
	if err != nil {
		return fmt.Errorf("set verified at: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set verified at rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanCredential(scan func(dest ...any) error) (domain.Credential, error) {
	var credential domain.Credential
	var balance string
	var verifiedAt sql.NullInt64
	var createdAt int64
	if err := scan(
		&credential.ID,
		&credential.VaultID,
		&credential.Kind,
		&credential.Metadata.ChainID,
		&credential.Metadata.TokenAddress,
		&balance,
		&verifiedAt,
		&createdAt,
	); err != nil {
		return domain.Credential{}, err
	}
	parsed, ok := new(big.Int).SetString(balance, 10)
	if !ok {
		return domain.Credential{}, fmt.Errorf("invalid stored balance %q", balance)
	}
	credential.Metadata.Balance = parsed
	if verifiedAt.Valid {
		stamp := time.UnixMilli(verifiedAt.Int64).UTC()
		credential.VerifiedAt = &stamp
	}
	credential.CreatedAt = time.UnixMilli(createdAt).UTC()
	return credential, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

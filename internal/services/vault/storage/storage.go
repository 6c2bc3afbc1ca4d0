// Package storage defines persistence contracts for vault and credential
// records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/veilworld/veilworld/internal/services/vault/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// VaultStore persists anonymous custody units.
type VaultStore interface {
	PutVault(ctx context.Context, vault domain.Vault) error
	GetVault(ctx context.Context, vaultID string) (domain.Vault, error)
}

// CredentialStore persists balance credentials. SetVerifiedAt is the only
// mutation the verifier performs; the authorization path reads only.
type CredentialStore interface {
	PutCredential(ctx context.Context, credential domain.Credential) error
	GetCredential(ctx context.Context, credentialID string) (domain.Credential, error)
	ListCredentials(ctx context.Context, vaultID string) ([]domain.Credential, error)
	SetVerifiedAt(ctx context.Context, credentialID string, verifiedAt time.Time) error
}

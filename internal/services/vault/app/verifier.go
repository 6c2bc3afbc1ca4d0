// Package app implements the credential verifier and vault session logic on
// top of the storage contracts.
package app

import (
	"context"
	"errors"
	"math/big"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
	"github.com/veilworld/veilworld/internal/services/vault/domain"
	"github.com/veilworld/veilworld/internal/services/vault/storage"
)

// BalanceLookup reads a live token balance from an external chain provider.
type BalanceLookup interface {
	ERC20Balance(ctx context.Context, chainID, tokenAddress, holder string) (*big.Int, error)
}

// Verifier validates claimed balances against live lookups and stamps
// credentials as verified.
type Verifier struct {
	vaults      storage.VaultStore
	credentials storage.CredentialStore
	balances    BalanceLookup
	now         func() time.Time
}

// NewVerifier creates a verifier. A nil clock defaults to time.Now.
func NewVerifier(vaults storage.VaultStore, credentials storage.CredentialStore, balances BalanceLookup, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{vaults: vaults, credentials: credentials, balances: balances, now: now}
}

// Verify checks the credential's claimed balance against a live lookup and
// refreshes its verification stamp. Re-verifying an already-valid credential
// only moves the stamp; the claimed balance is never rewritten.
func (v *Verifier) Verify(ctx context.Context, credentialID string) (domain.Credential, error) {
	credential, err := v.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Credential{}, platformerrors.New(platformerrors.CodeNotFound, "credential not found")
		}
		return domain.Credential{}, platformerrors.Wrap(platformerrors.CodeUnknown, "load credential", err)
	}

	vault, err := v.vaults.GetVault(ctx, credential.VaultID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Credential{}, platformerrors.New(platformerrors.CodeVaultNotFound, "credential vault not found")
		}
		return domain.Credential{}, platformerrors.Wrap(platformerrors.CodeUnknown, "load vault", err)
	}

	live, err := v.balances.ERC20Balance(ctx, credential.Metadata.ChainID, credential.Metadata.TokenAddress, vault.Address)
	if err != nil {
		return domain.Credential{}, platformerrors.Wrap(platformerrors.CodeLookupFailed, "balance lookup failed", err)
	}
	if live.Cmp(credential.Metadata.Balance) < 0 {
		return domain.Credential{}, platformerrors.WithMetadata(
			platformerrors.CodeStaleClaim,
			"live balance is below the claimed balance",
			map[string]string{
				"claimed": credential.Metadata.Balance.String(),
				"live":    live.String(),
			},
		)
	}

	verifiedAt := v.now().UTC()
	if err := v.credentials.SetVerifiedAt(ctx, credential.ID, verifiedAt); err != nil {
		return domain.Credential{}, platformerrors.Wrap(platformerrors.CodeUnknown, "persist verification stamp", err)
	}
	credential.VerifiedAt = &verifiedAt
	return credential, nil
}

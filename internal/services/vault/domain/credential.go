package domain

import (
	"math/big"
	"strings"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
)

// KindERC20Balance is the only credential capability currently issued: a
// claim that the vault controls at least Metadata.Balance of an ERC-20
// token.
const KindERC20Balance = "erc20-balance"

// CredentialMetadata names the token a balance claim is about.
type CredentialMetadata struct {
	ChainID      string
	TokenAddress string
	Balance      *big.Int
}

// Credential is a vault's claim over a token balance. VerifiedAt is nil
// until the verifier has confirmed the claim against a live lookup; the
// authorization path never mutates it.
type Credential struct {
	ID         string
	VaultID    string
	Kind       string
	Metadata   CredentialMetadata
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// ValidateCredential checks structural invariants before persisting.
func ValidateCredential(credential Credential) error {
	if strings.TrimSpace(credential.ID) == "" {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "credential id is required")
	}
	if strings.TrimSpace(credential.VaultID) == "" {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "credential vault id is required")
	}
	if credential.Kind != KindERC20Balance {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "unsupported credential kind")
	}
	if strings.TrimSpace(credential.Metadata.ChainID) == "" {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "credential chain id is required")
	}
	if !isHexAddress(credential.Metadata.TokenAddress) {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "credential token address must be a 0x-prefixed 20-byte hex address")
	}
	if credential.Metadata.Balance == nil || credential.Metadata.Balance.Sign() <= 0 {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "credential balance must be positive")
	}
	return nil
}

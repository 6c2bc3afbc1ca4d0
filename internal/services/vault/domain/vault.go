// Package domain holds the vault and credential model shared by the
// credential store, the verifier, and the authorization engine.
package domain

import (
	"crypto/ed25519"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
)

// Vault is an anonymous custody unit grouping credentials. The commitment
// identifies the vault publicly without exposing the controlling wallet.
type Vault struct {
	ID         string
	Commitment []byte
	PublicKey  ed25519.PublicKey
	Address    string
	CreatedAt  time.Time
}

// Commitment derives the public vault commitment from its controlling key.
func Commitment(publicKey ed25519.PublicKey) []byte {
	sum := blake3.Sum256(publicKey)
	return sum[:]
}

// ValidateVault checks structural invariants before persisting a vault.
func ValidateVault(vault Vault) error {
	if strings.TrimSpace(vault.ID) == "" {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "vault id is required")
	}
	if len(vault.PublicKey) != ed25519.PublicKeySize {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "vault public key must be 32 bytes")
	}
	if !isHexAddress(vault.Address) {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "vault address must be a 0x-prefixed 20-byte hex address")
	}
	return nil
}

func isHexAddress(address string) bool {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return false
	}
	for _, r := range strings.ToLower(address[2:]) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

package client

import (
	"crypto/ed25519"
	"fmt"
)

// KeySigner signs payloads with the vault's controlling ed25519 key.
type KeySigner struct {
	privateKey ed25519.PrivateKey
}

// NewKeySigner wraps a private key for payload signing.
func NewKeySigner(privateKey ed25519.PrivateKey) (*KeySigner, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	return &KeySigner{privateKey: privateKey}, nil
}

// Sign produces an ed25519 signature over payload.
func (s *KeySigner) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.privateKey, payload), nil
}

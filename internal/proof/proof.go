// Package proof produces and checks the opaque artifacts that bind a
// credential to one specific privileged action. The zero-knowledge circuit
// itself lives behind the Generator interface; this package fixes the
// binding semantics both sides must agree on: a canonical CBOR encoding of
// the action payload hashed with BLAKE3, carried inside a small envelope
// together with the vault commitment.
package proof

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// SchemeBindingV1 identifies the envelope layout produced by LocalProver.
const SchemeBindingV1 = "veil-binding-v1"

// Binding names the action a proof is tied to. Every field participates in
// the digest, so changing any of them invalidates the proof.
type Binding struct {
	CredentialID string `cbor:"1,keyasint"`
	ActionKind   string `cbor:"2,keyasint"`
	PostID       string `cbor:"3,keyasint"`
	AsReply      bool   `cbor:"4,keyasint"`
}

// Envelope is the wire form of a proof.
type Envelope struct {
	Scheme     string `cbor:"1,keyasint"`
	Digest     []byte `cbor:"2,keyasint"`
	Commitment []byte `cbor:"3,keyasint"`
}

// Generator produces proof bytes for a binding on behalf of a vault.
type Generator interface {
	Generate(ctx context.Context, binding Binding, commitment []byte) ([]byte, error)
}

var encMode cbor.EncMode

func init() {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("proof: canonical cbor mode: %v", err))
	}
	encMode = mode
}

// Digest returns the BLAKE3 digest of the canonical binding encoding.
func Digest(binding Binding) ([]byte, error) {
	encoded, err := encMode.Marshal(binding)
	if err != nil {
		return nil, fmt.Errorf("encode binding: %w", err)
	}
	sum := blake3.Sum256(encoded)
	return sum[:], nil
}

// SigningPayload returns the canonical bytes a wallet signs when submitting
// proofBytes for binding. The server rebuilds the same bytes to check the
// signature, so the encoding must stay deterministic.
func SigningPayload(proofBytes []byte, binding Binding) ([]byte, error) {
	payload := struct {
		Proof   []byte  `cbor:"1,keyasint"`
		Binding Binding `cbor:"2,keyasint"`
	}{Proof: proofBytes, Binding: binding}
	encoded, err := encMode.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode signing payload: %w", err)
	}
	return encoded, nil
}

// Verify checks that proofBytes is a well-formed envelope bound to exactly
// this binding and vault commitment.
func Verify(proofBytes []byte, binding Binding, commitment []byte) error {
	var envelope Envelope
	if err := cbor.Unmarshal(proofBytes, &envelope); err != nil {
		return fmt.Errorf("decode proof envelope: %w", err)
	}
	if envelope.Scheme != SchemeBindingV1 {
		return fmt.Errorf("unsupported proof scheme %q", envelope.Scheme)
	}
	want, err := Digest(binding)
	if err != nil {
		return err
	}
	if !bytes.Equal(envelope.Digest, want) {
		return fmt.Errorf("proof digest does not match action payload")
	}
	if !bytes.Equal(envelope.Commitment, commitment) {
		return fmt.Errorf("proof commitment does not match vault")
	}
	return nil
}

// LocalProver implements Generator without an external proving service. It
// is used by the development client and by tests; the envelope it emits is
// exactly what Verify accepts.
type LocalProver struct{}

// Generate builds a binding-v1 envelope for the given action.
func (LocalProver) Generate(_ context.Context, binding Binding, commitment []byte) ([]byte, error) {
	digest, err := Digest(binding)
	if err != nil {
		return nil, err
	}
	encoded, err := encMode.Marshal(Envelope{
		Scheme:     SchemeBindingV1,
		Digest:     digest,
		Commitment: commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("encode proof envelope: %w", err)
	}
	return encoded, nil
}

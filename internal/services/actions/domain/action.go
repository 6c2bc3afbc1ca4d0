// Package domain models privileged post actions: the request lifecycle, the
// per-token threshold policy, and the proof binding shared with clients.
package domain

import (
	"strings"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
	"github.com/veilworld/veilworld/internal/proof"
)

// Kind is a privileged action a credential can authorize.
type Kind string

const (
	// KindDelete removes the post from the external platform.
	KindDelete Kind = "delete"
	// KindPromote cross-posts the post to the external platform.
	KindPromote Kind = "promote"
)

// ParseKind validates an action kind string.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.TrimSpace(value)) {
	case KindDelete:
		return KindDelete, nil
	case KindPromote:
		return KindPromote, nil
	default:
		return "", platformerrors.New(platformerrors.CodeInvalidArgument, "unsupported action kind")
	}
}

// Status tracks a request through the executor.
type Status string

const (
	// StatusQueued means the request is authorized and waiting for the executor.
	StatusQueued Status = "queued"
	// StatusExecuting means an executor holds the lease for this request.
	StatusExecuting Status = "executing"
	// StatusCompleted means the external side effect happened.
	StatusCompleted Status = "completed"
	// StatusFailed is terminal after permanent failure or attempt exhaustion.
	StatusFailed Status = "failed"
)

// Request is one authorized privileged action awaiting or undergoing
// execution. (PostID, Kind) is the idempotency key: at most one request per
// key may be queued or executing at a time.
type Request struct {
	ID           string
	PostID       string
	Kind         Kind
	AsReply      bool
	CredentialID string
	Proof        []byte
	Signature    []byte
	Status       Status
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Binding returns the proof binding for this request's action payload.
func (r Request) Binding() proof.Binding {
	return proof.Binding{
		CredentialID: r.CredentialID,
		ActionKind:   string(r.Kind),
		PostID:       r.PostID,
		AsReply:      r.AsReply,
	}
}

// ValidateRequest checks structural invariants before authorization.
func ValidateRequest(request Request) error {
	if strings.TrimSpace(request.PostID) == "" {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "post id is required")
	}
	if _, err := ParseKind(string(request.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(request.CredentialID) == "" {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "credential id is required")
	}
	if len(request.Proof) == 0 {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "proof is required")
	}
	if len(request.Signature) == 0 {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "signature is required")
	}
	if request.AsReply && request.Kind != KindPromote {
		return platformerrors.New(platformerrors.CodeInvalidArgument, "as-reply only applies to promote")
	}
	return nil
}

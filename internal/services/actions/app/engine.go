// Package app contains the authorization engine: the single decision point
// between a submitted action request and the durable execution queue.
package app

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
	"github.com/veilworld/veilworld/internal/platform/id"
	"github.com/veilworld/veilworld/internal/proof"
	"github.com/veilworld/veilworld/internal/services/actions/domain"
	"github.com/veilworld/veilworld/internal/services/actions/storage"
	vaultdomain "github.com/veilworld/veilworld/internal/services/vault/domain"
	vaultstorage "github.com/veilworld/veilworld/internal/services/vault/storage"
)

// Submission is an action request as received from a client, before the
// engine assigns an identifier.
type Submission struct {
	PostID       string
	Kind         domain.Kind
	AsReply      bool
	CredentialID string
	Proof        []byte
	Signature    []byte
}

// Decision is the outcome of a successful authorization: the queued request
// and whether an equivalent request was already in flight.
type Decision struct {
	RequestID string
	Duplicate bool
}

// Engine authorizes privileged actions. Every check must pass before a
// request reaches the queue; the check order is fixed so a rejected
// submission always reports its earliest failure.
type Engine struct {
	vaults      vaultstorage.VaultStore
	credentials vaultstorage.CredentialStore
	queue       storage.QueueStore
	policy      *domain.ThresholdPolicy
	ttl         time.Duration
	now         func() time.Time
}

// NewEngine wires the authorization engine. A zero ttl falls back to the
// default credential TTL; a nil clock defaults to time.Now.
func NewEngine(vaults vaultstorage.VaultStore, credentials vaultstorage.CredentialStore, queue storage.QueueStore, policy *domain.ThresholdPolicy, ttl time.Duration, now func() time.Time) *Engine {
	if ttl <= 0 {
		ttl = vaultdomain.DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		vaults:      vaults,
		credentials: credentials,
		queue:       queue,
		policy:      policy,
		ttl:         ttl,
		now:         now,
	}
}

// AuthorizeAndEnqueue runs the full authorization chain for one submission
// and, if every check passes, persists a queued request. A concurrent
// duplicate for the same (post, kind) key is reported as an already-accepted
// decision rather than an error, so both submitters observe success.
func (e *Engine) AuthorizeAndEnqueue(ctx context.Context, submission Submission) (Decision, error) {
	request := domain.Request{
		PostID:       submission.PostID,
		Kind:         submission.Kind,
		AsReply:      submission.AsReply,
		CredentialID: submission.CredentialID,
		Proof:        submission.Proof,
		Signature:    submission.Signature,
	}
	if err := domain.ValidateRequest(request); err != nil {
		return Decision{}, err
	}

	credential, err := e.credentials.GetCredential(ctx, request.CredentialID)
	if err != nil {
		if errors.Is(err, vaultstorage.ErrNotFound) {
			return Decision{}, platformerrors.New(platformerrors.CodeUnknownCredential, "credential does not exist")
		}
		return Decision{}, platformerrors.Wrap(platformerrors.CodeUnknown, "load credential", err)
	}

	now := e.now().UTC()
	if !vaultdomain.Usable(credential, now, e.ttl) {
		return Decision{}, platformerrors.WithMetadata(platformerrors.CodeCredentialExpired, "credential verification is missing or expired", map[string]string{
			"credential_id": credential.ID,
		})
	}

	vault, err := e.vaults.GetVault(ctx, credential.VaultID)
	if err != nil {
		if errors.Is(err, vaultstorage.ErrNotFound) {
			return Decision{}, platformerrors.New(platformerrors.CodeVaultNotFound, "credential vault does not exist")
		}
		return Decision{}, platformerrors.Wrap(platformerrors.CodeUnknown, "load vault", err)
	}

	binding := request.Binding()
	if err := proof.Verify(request.Proof, binding, vault.Commitment); err != nil {
		return Decision{}, platformerrors.Wrap(platformerrors.CodeInvalidProof, "proof is not bound to this action", err)
	}

	payload, err := proof.SigningPayload(request.Proof, binding)
	if err != nil {
		return Decision{}, platformerrors.Wrap(platformerrors.CodeInvalidProof, "build signing payload", err)
	}
	if !ed25519.Verify(vault.PublicKey, payload, request.Signature) {
		return Decision{}, platformerrors.New(platformerrors.CodeInvalidSignature, "signature does not match vault key")
	}

	minimum, err := e.policy.RequiredBalance(credential.Metadata.TokenAddress, request.Kind)
	if err != nil {
		return Decision{}, err
	}
	if credential.Metadata.Balance == nil || credential.Metadata.Balance.Cmp(minimum) < 0 {
		return Decision{}, platformerrors.WithMetadata(platformerrors.CodeInsufficientBalance, "verified balance is below the action threshold", map[string]string{
			"required": minimum.String(),
		})
	}

	request.ID = id.NewID()
	request.Status = domain.StatusQueued
	request.CreatedAt = now
	if err := e.queue.Enqueue(ctx, request); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return Decision{Duplicate: true}, nil
		}
		return Decision{}, platformerrors.Wrap(platformerrors.CodeUnknown, "enqueue request", err)
	}
	return Decision{RequestID: request.ID}, nil
}

// Package client implements the submission pipeline a wallet-holding client
// runs to request a privileged action: generate a proof bound to the action,
// sign the payload, and submit it to the API.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/veilworld/veilworld/internal/proof"
)

// State is the pipeline's observable phase. The pipeline is a strict cycle:
// Idle -> Generating -> Signature -> Idle. Every failure edge returns to
// Idle and discards the partial proof.
type State string

const (
	// StateIdle means no submission is running.
	StateIdle State = "idle"
	// StateGenerating means a proof is being generated.
	StateGenerating State = "generating"
	// StateSignature means the proof exists and awaits a wallet signature.
	StateSignature State = "signature"
)

// Signer produces a wallet signature over a signing payload.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
}

// Submission carries the signed artifacts to the API.
type Submission struct {
	PostID       string
	Kind         string
	AsReply      bool
	CredentialID string
	Proof        []byte
	Signature    []byte
}

// Result is the API's answer to a submission.
type Result struct {
	RequestID string
	Duplicate bool
	Notice    string
}

// Submitter delivers a signed submission to the API.
type Submitter interface {
	Submit(ctx context.Context, submission Submission) (Result, error)
}

// Action names what the client wants done.
type Action struct {
	PostID  string
	Kind    string
	AsReply bool
}

type actionKey struct {
	postID string
	kind   string
}

// Pipeline drives one submission at a time per (post, kind). A second
// Execute for the same key while one is running is rejected locally before
// any proof work starts.
type Pipeline struct {
	prover     proof.Generator
	signer     Signer
	submitter  Submitter
	commitment []byte

	mu       sync.Mutex
	state    State
	inflight map[actionKey]struct{}
}

// NewPipeline builds a submission pipeline for one vault.
func NewPipeline(prover proof.Generator, signer Signer, submitter Submitter, commitment []byte) *Pipeline {
	return &Pipeline{
		prover:     prover,
		signer:     signer,
		submitter:  submitter,
		commitment: commitment,
		state:      StateIdle,
		inflight:   make(map[actionKey]struct{}),
	}
}

// State reports the pipeline's current phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// transition is the only place the pipeline state changes.
func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	p.state = to
	p.mu.Unlock()
}

func (p *Pipeline) acquire(key actionKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[key]; busy {
		return false
	}
	p.inflight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key actionKey) {
	p.mu.Lock()
	delete(p.inflight, key)
	p.mu.Unlock()
}

// Execute runs the full pipeline for one action with one credential. On any
// failure the generated proof is discarded; a later Execute starts from
// scratch.
func (p *Pipeline) Execute(ctx context.Context, credentialID string, action Action) (Result, error) {
	key := actionKey{postID: action.PostID, kind: action.Kind}
	if !p.acquire(key) {
		return Result{}, fmt.Errorf("submission already running for post %s action %s", action.PostID, action.Kind)
	}
	defer p.release(key)
	defer p.transition(StateIdle)

	binding := proof.Binding{
		CredentialID: credentialID,
		ActionKind:   action.Kind,
		PostID:       action.PostID,
		AsReply:      action.AsReply,
	}

	p.transition(StateGenerating)
	proofBytes, err := p.prover.Generate(ctx, binding, p.commitment)
	if err != nil {
		return Result{}, fmt.Errorf("generate proof: %w", err)
	}

	p.transition(StateSignature)
	payload, err := proof.SigningPayload(proofBytes, binding)
	if err != nil {
		return Result{}, fmt.Errorf("build signing payload: %w", err)
	}
	signature, err := p.signer.Sign(payload)
	if err != nil {
		return Result{}, fmt.Errorf("sign payload: %w", err)
	}

	result, err := p.submitter.Submit(ctx, Submission{
		PostID:       action.PostID,
		Kind:         action.Kind,
		AsReply:      action.AsReply,
		CredentialID: credentialID,
		Proof:        proofBytes,
		Signature:    signature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("submit action: %w", err)
	}
	return result, nil
}

package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veilworld/veilworld/internal/proof"
)

type recordingSubmitter struct {
	mu          sync.Mutex
	submissions []Submission
	result      Result
	err         error
	gate        chan struct{}
}

func (r *recordingSubmitter) Submit(_ context.Context, submission Submission) (Result, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.submissions = append(r.submissions, submission)
	r.mu.Unlock()
	return r.result, r.err
}

type failingProver struct{}

func (failingProver) Generate(context.Context, proof.Binding, []byte) ([]byte, error) {
	return nil, errors.New("circuit unavailable")
}

func newTestPipeline(t *testing.T, submitter Submitter) (*Pipeline, ed25519.PublicKey) {
	t.Helper()
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewKeySigner(privateKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	commitment := make([]byte, 32)
	return NewPipeline(proof.LocalProver{}, signer, submitter, commitment), publicKey
}

func TestExecuteProducesVerifiableSubmission(t *testing.T) {
	submitter := &recordingSubmitter{result: Result{RequestID: "req-1"}}
	pipeline, publicKey := newTestPipeline(t, submitter)

	result, err := pipeline.Execute(context.Background(), "cred-1", Action{PostID: "0xpost", Kind: "delete"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.RequestID != "req-1" {
		t.Fatalf("request id = %q", result.RequestID)
	}
	if got := pipeline.State(); got != StateIdle {
		t.Fatalf("state after success = %q, want idle", got)
	}

	if len(submitter.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(submitter.submissions))
	}
	submission := submitter.submissions[0]

	// The server-side checks must accept what the pipeline produced.
	binding := proof.Binding{CredentialID: "cred-1", ActionKind: "delete", PostID: "0xpost"}
	if err := proof.Verify(submission.Proof, binding, make([]byte, 32)); err != nil {
		t.Fatalf("verify proof: %v", err)
	}
	payload, err := proof.SigningPayload(submission.Proof, binding)
	if err != nil {
		t.Fatalf("signing payload: %v", err)
	}
	if !ed25519.Verify(publicKey, payload, submission.Signature) {
		t.Fatal("signature does not verify")
	}
}

func TestExecuteResetsToIdleOnProofFailure(t *testing.T) {
	submitter := &recordingSubmitter{}
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewKeySigner(privateKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	pipeline := NewPipeline(failingProver{}, signer, submitter, make([]byte, 32))

	_, err = pipeline.Execute(context.Background(), "cred-1", Action{PostID: "0xpost", Kind: "delete"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := pipeline.State(); got != StateIdle {
		t.Fatalf("state after failure = %q, want idle", got)
	}
	if len(submitter.submissions) != 0 {
		t.Fatal("failed proof still reached the submitter")
	}
}

func TestExecuteResetsToIdleOnSubmitFailure(t *testing.T) {
	submitter := &recordingSubmitter{err: errors.New("api unreachable")}
	pipeline, _ := newTestPipeline(t, submitter)

	_, err := pipeline.Execute(context.Background(), "cred-1", Action{PostID: "0xpost", Kind: "delete"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := pipeline.State(); got != StateIdle {
		t.Fatalf("state after failure = %q, want idle", got)
	}
}

func TestExecuteRejectsConcurrentDuplicateKey(t *testing.T) {
	submitter := &recordingSubmitter{gate: make(chan struct{})}
	pipeline, _ := newTestPipeline(t, submitter)

	firstDone := make(chan error, 1)
	go func() {
		_, err := pipeline.Execute(context.Background(), "cred-1", Action{PostID: "0xpost", Kind: "delete"})
		firstDone <- err
	}()

	// Wait for the first execution to reach the submitter gate.
	for pipeline.State() == StateIdle {
		time.Sleep(time.Millisecond)
	}

	if _, err := pipeline.Execute(context.Background(), "cred-1", Action{PostID: "0xpost", Kind: "delete"}); err == nil {
		t.Fatal("duplicate in-flight key accepted")
	}

	// A different key is not blocked.
	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Execute(context.Background(), "cred-1", Action{PostID: "0xother", Kind: "delete"})
		done <- err
	}()

	close(submitter.gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("second key execute: %v", err)
	}
}

func TestHTTPSubmitterRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/actions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body submitPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Kind != "promote" || !body.AsReply {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(submitAnswer{RequestID: "req-9", Notice: "queued"})
	}))
	defer server.Close()

	submitter, err := NewHTTPSubmitter(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new submitter: %v", err)
	}
	result, err := submitter.Submit(context.Background(), Submission{
		PostID:       "0xpost",
		Kind:         "promote",
		AsReply:      true,
		CredentialID: "cred-1",
		Proof:        []byte{0x01},
		Signature:    []byte{0x02},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.RequestID != "req-9" {
		t.Fatalf("request id = %q", result.RequestID)
	}
}

func TestHTTPSubmitterSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(submitError{Code: "ACTION_INVALID_PROOF", Message: "proof is not bound to this action"})
	}))
	defer server.Close()

	submitter, err := NewHTTPSubmitter(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new submitter: %v", err)
	}
	_, err = submitter.Submit(context.Background(), Submission{PostID: "0xpost", Kind: "delete"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "ACTION_INVALID_PROOF") {
		t.Fatalf("error = %q", got)
	}
}

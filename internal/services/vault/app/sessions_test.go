package app

import (
	"testing"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
)

func TestSessionsMintAndVerify(t *testing.T) {
	sessions, err := NewSessions([]byte("test-secret"), time.Hour, nil)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}

	token, err := sessions.Mint("vault-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	vaultID, err := sessions.VaultID(token)
	if err != nil {
		t.Fatalf("vault id: %v", err)
	}
	if vaultID != "vault-1" {
		t.Fatalf("vault id = %q, want vault-1", vaultID)
	}
}

func TestSessionsRejectExpiredToken(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions, err := NewSessions([]byte("test-secret"), time.Minute, func() time.Time { return current })
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}

	token, err := sessions.Mint("vault-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	current = current.Add(2 * time.Minute)
	_, err = sessions.VaultID(token)
	if platformerrors.CodeOf(err) != platformerrors.CodeSessionInvalid {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestSessionsRejectWrongSecret(t *testing.T) {
	minting, err := NewSessions([]byte("secret-a"), time.Hour, nil)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	checking, err := NewSessions([]byte("secret-b"), time.Hour, nil)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}

	token, err := minting.Mint("vault-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := checking.VaultID(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestSessionsRejectGarbage(t *testing.T) {
	sessions, err := NewSessions([]byte("test-secret"), time.Hour, nil)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	if _, err := sessions.VaultID("not-a-token"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}

package domain

import (
	"testing"
	"time"
)

func TestUsableRequiresVerification(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if Usable(Credential{}, now, DefaultTTL) {
		t.Fatal("expected unverified credential to be unusable")
	}
}

func TestUsableExpiresExactlyAtTTL(t *testing.T) {
	ttl := 5 * time.Minute
	verifiedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	credential := Credential{VerifiedAt: &verifiedAt}

	if !Usable(credential, verifiedAt.Add(ttl-time.Second), ttl) {
		t.Fatal("expected credential to be usable just before expiry")
	}
	if Usable(credential, verifiedAt.Add(ttl), ttl) {
		t.Fatal("expected credential to be unusable exactly at expiry")
	}
	if Usable(credential, verifiedAt.Add(ttl+time.Second), ttl) {
		t.Fatal("expected credential to be unusable after expiry")
	}
}

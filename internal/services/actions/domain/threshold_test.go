package domain

import (
	"math/big"
	"testing"

	vaultdomain "github.com/veilworld/veilworld/internal/services/vault/domain"
)

const testToken = "0x0db510e79909666d6dec7f5e49370838c16d950f"

func testPolicy() *ThresholdPolicy {
	return NewThresholdPolicy(map[string]Thresholds{
		testToken: {
			Delete:  big.NewInt(500),
			Promote: big.NewInt(2000),
		},
	})
}

func testCredential(balance int64) vaultdomain.Credential {
	return vaultdomain.Credential{
		ID:      "cred-1",
		VaultID: "vault-1",
		Kind:    vaultdomain.KindERC20Balance,
		Metadata: vaultdomain.CredentialMetadata{
			ChainID:      "8453",
			TokenAddress: testToken,
			Balance:      big.NewInt(balance),
		},
	}
}

func TestAuthorizeAgainstThresholds(t *testing.T) {
	policy := testPolicy()
	credential := testCredential(1000)

	if !policy.Authorize(credential, KindDelete) {
		t.Fatal("expected balance 1000 to authorize delete at threshold 500")
	}
	if policy.Authorize(credential, KindPromote) {
		t.Fatal("expected balance 1000 to be denied promote at threshold 2000")
	}
}

func TestAuthorizeExactThreshold(t *testing.T) {
	policy := testPolicy()

	if !policy.Authorize(testCredential(500), KindDelete) {
		t.Fatal("expected balance equal to threshold to authorize")
	}
	if policy.Authorize(testCredential(499), KindDelete) {
		t.Fatal("expected balance below threshold to be denied")
	}
}

func TestAuthorizeFailsClosedWhenUnconfigured(t *testing.T) {
	policy := testPolicy()
	credential := testCredential(1_000_000)
	credential.Metadata.TokenAddress = "0x00000000000000000000000000000000deadbeef"

	if policy.Authorize(credential, KindDelete) {
		t.Fatal("expected unconfigured token to be denied")
	}

	var nilPolicy *ThresholdPolicy
	if nilPolicy.Authorize(testCredential(1_000_000), KindDelete) {
		t.Fatal("expected nil policy to be denied")
	}
}

func TestRequiredBalanceCaseInsensitiveAddress(t *testing.T) {
	policy := NewThresholdPolicy(map[string]Thresholds{
		"0x0DB510E79909666D6DEC7F5E49370838C16D950F": {Delete: big.NewInt(5)},
	})
	minimum, err := policy.RequiredBalance(testToken, KindDelete)
	if err != nil {
		t.Fatalf("required balance: %v", err)
	}
	if minimum.Int64() != 5 {
		t.Fatalf("minimum = %s, want 5", minimum)
	}
}

func TestParseThresholds(t *testing.T) {
	raw := []byte(`
tokens:
  "0x0db510e79909666d6dec7f5e49370838c16d950f":
    delete: "500000000000000000000"
    promote: "2000000000000000000000"
`)
	policy, err := ParseThresholds(raw)
	if err != nil {
		t.Fatalf("parse thresholds: %v", err)
	}
	minimum, err := policy.RequiredBalance(testToken, KindPromote)
	if err != nil {
		t.Fatalf("required balance: %v", err)
	}
	want, _ := new(big.Int).SetString("2000000000000000000000", 10)
	if minimum.Cmp(want) != 0 {
		t.Fatalf("minimum = %s, want %s", minimum, want)
	}
}

func TestParseThresholdsRejectsInvalidAmount(t *testing.T) {
	raw := []byte(`
tokens:
  "0xabc":
    delete: "not-a-number"
`)
	if _, err := ParseThresholds(raw); err == nil {
		t.Fatal("expected invalid threshold amount to be rejected")
	}
}

func TestParseKindAndValidateRequest(t *testing.T) {
	if _, err := ParseKind("burn"); err == nil {
		t.Fatal("expected unsupported kind to be rejected")
	}

	valid := Request{
		PostID:       "0xabc",
		Kind:         KindPromote,
		AsReply:      true,
		CredentialID: "cred-1",
		Proof:        []byte{1},
		Signature:    []byte{2},
	}
	if err := ValidateRequest(valid); err != nil {
		t.Fatalf("validate request: %v", err)
	}

	deleteAsReply := valid
	deleteAsReply.Kind = KindDelete
	if err := ValidateRequest(deleteAsReply); err == nil {
		t.Fatal("expected as-reply delete to be rejected")
	}

	missingProof := valid
	missingProof.Proof = nil
	if err := ValidateRequest(missingProof); err == nil {
		t.Fatal("expected missing proof to be rejected")
	}
}

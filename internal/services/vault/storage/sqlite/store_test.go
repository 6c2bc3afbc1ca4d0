package sqlite

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/veilworld/veilworld/internal/services/vault/domain"
	"github.com/veilworld/veilworld/internal/services/vault/storage"
)

func TestPutAndGetVault(t *testing.T) {
	store := openTempStore(t)
	vault := testVault(t, "vault-1")

	if err := store.PutVault(context.Background(), vault); err != nil {
		t.Fatalf("put vault: %v", err)
	}

	loaded, err := store.GetVault(context.Background(), "vault-1")
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if loaded.ID != vault.ID {
		t.Fatalf("vault id = %q, want %q", loaded.ID, vault.ID)
	}
	if loaded.Address != vault.Address {
		t.Fatalf("vault address = %q, want %q", loaded.Address, vault.Address)
	}
	if !loaded.PublicKey.Equal(vault.PublicKey) {
		t.Fatal("expected stored public key to round-trip")
	}

	if err := store.PutVault(context.Background(), vault); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate put vault err = %v, want ErrAlreadyExists", err)
	}
}

func TestGetVaultNotFound(t *testing.T) {
	store := openTempStore(t)

	if _, err := store.GetVault(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get vault err = %v, want ErrNotFound", err)
	}
}

func TestCredentialRoundTripAndVerifiedAt(t *testing.T) {
	store := openTempStore(t)
	vault := testVault(t, "vault-1")
	if err := store.PutVault(context.Background(), vault); err != nil {
		t.Fatalf("put vault: %v", err)
	}

	credential := domain.Credential{
		ID:      "cred-1",
		VaultID: "vault-1",
		Kind:    domain.KindERC20Balance,
		Metadata: domain.CredentialMetadata{
			ChainID:      "8453",
			TokenAddress: "0x0db510e79909666d6dec7f5e49370838c16d950f",
			Balance:      mustBig(t, "123456789012345678901234567890"),
		},
	}
	if err := store.PutCredential(context.Background(), credential); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	loaded, err := store.GetCredential(context.Background(), "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if loaded.VerifiedAt != nil {
		t.Fatal("expected new credential to be unverified")
	}
	if loaded.Metadata.Balance.Cmp(credential.Metadata.Balance) != 0 {
		t.Fatalf("balance = %s, want %s", loaded.Metadata.Balance, credential.Metadata.Balance)
	}

	verifiedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SetVerifiedAt(context.Background(), "cred-1", verifiedAt); err != nil {
		t.Fatalf("set verified at: %v", err)
	}
	loaded, err = store.GetCredential(context.Background(), "cred-1")
	if err != nil {
		t.Fatalf("get credential after verify: %v", err)
	}
	if loaded.VerifiedAt == nil || !loaded.VerifiedAt.Equal(verifiedAt) {
		t.Fatalf("verified at = %v, want %v", loaded.VerifiedAt, verifiedAt)
	}
}

func TestSetVerifiedAtMissingCredential(t *testing.T) {
	store := openTempStore(t)

	err := store.SetVerifiedAt(context.Background(), "missing", time.Now())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("set verified at err = %v, want ErrNotFound", err)
	}
}

func TestListCredentialsNewestFirst(t *testing.T) {
	store := openTempStore(t)
	vault := testVault(t, "vault-1")
	if err := store.PutVault(context.Background(), vault); err != nil {
		t.Fatalf("put vault: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"cred-old", "cred-new"} {
		credential := domain.Credential{
			ID:      id,
			VaultID: "vault-1",
			Kind:    domain.KindERC20Balance,
			Metadata: domain.CredentialMetadata{
				ChainID:      "8453",
				TokenAddress: "0x0db510e79909666d6dec7f5e49370838c16d950f",
				Balance:      big.NewInt(1000),
			},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.PutCredential(context.Background(), credential); err != nil {
			t.Fatalf("put credential %s: %v", id, err)
		}
	}

	credentials, err := store.ListCredentials(context.Background(), "vault-1")
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(credentials) != 2 {
		t.Fatalf("credentials len = %d, want 2", len(credentials))
	}
	if credentials[0].ID != "cred-new" {
		t.Fatalf("credentials[0] = %q, want cred-new", credentials[0].ID)
	}
}

func testVault(t *testing.T, id string) domain.Vault {
	t.Helper()
	publicKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return domain.Vault{
		ID:         id,
		Commitment: domain.Commitment(publicKey),
		PublicKey:  publicKey,
		Address:    "0x00000000000000000000000000000000deadbeef",
	}
}

func mustBig(t *testing.T, value string) *big.Int {
	t.Helper()
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		t.Fatalf("invalid big int %q", value)
	}
	return parsed
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

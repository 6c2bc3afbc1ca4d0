package api

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
	"github.com/veilworld/veilworld/internal/platform/id"
	"github.com/veilworld/veilworld/internal/services/vault/domain"
	"github.com/veilworld/veilworld/internal/services/vault/storage"
)

type createVaultRequest struct {
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
}

type createVaultResponse struct {
	VaultID      string `json:"vault_id"`
	Commitment   string `json:"commitment"`
	SessionToken string `json:"session_token"`
}

type createCredentialRequest struct {
	ChainID      string `json:"chain_id"`
	TokenAddress string `json:"token_address"`
	Balance      string `json:"balance"`
}

type credentialView struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	ChainID      string `json:"chain_id"`
	TokenAddress string `json:"token_address"`
	Balance      string `json:"balance"`
	VerifiedAt   string `json:"verified_at,omitempty"`
	Usable       bool   `json:"usable"`
}

type listCredentialsResponse struct {
	Credentials []credentialView `json:"credentials"`
	TTLSeconds  int64            `json:"ttl_seconds"`
}

func (s *Server) handleVaults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body createVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidArgument, "invalid request body"))
		return
	}
	publicKey, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body.PublicKey))
	if err != nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidArgument, "public key must be base64"))
		return
	}

	vault := domain.Vault{
		ID:         id.NewID(),
		Commitment: domain.Commitment(publicKey),
		PublicKey:  publicKey,
		Address:    strings.TrimSpace(body.Address),
		CreatedAt:  s.clock().UTC(),
	}
	if err := domain.ValidateVault(vault); err != nil {
		writeError(w, err)
		return
	}
	if err := s.vaults.PutVault(r.Context(), vault); err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeUnknown, "persist vault", err))
		return
	}
	token, err := s.sessions.Mint(vault.ID)
	if err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeUnknown, "mint session", err))
		return
	}
	writeJSON(w, http.StatusCreated, createVaultResponse{
		VaultID:      vault.ID,
		Commitment:   hex.EncodeToString(vault.Commitment),
		SessionToken: token,
	})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateCredential(w, r)
	case http.MethodGet:
		s.handleListCredentials(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	vaultID, err := s.bearerVault(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body createCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidArgument, "invalid request body"))
		return
	}
	balance, ok := new(big.Int).SetString(strings.TrimSpace(body.Balance), 10)
	if !ok {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidArgument, "balance must be a decimal string"))
		return
	}

	credential := domain.Credential{
		ID:      id.NewID(),
		VaultID: vaultID,
		Kind:    domain.KindERC20Balance,
		Metadata: domain.CredentialMetadata{
			ChainID:      strings.TrimSpace(body.ChainID),
			TokenAddress: strings.TrimSpace(body.TokenAddress),
			Balance:      balance,
		},
		CreatedAt: s.clock().UTC(),
	}
	if err := domain.ValidateCredential(credential); err != nil {
		writeError(w, err)
		return
	}
	if err := s.credentials.PutCredential(r.Context(), credential); err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeUnknown, "persist credential", err))
		return
	}
	writeJSON(w, http.StatusCreated, s.credentialView(credential, s.clock().UTC()))
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	vaultID, err := s.bearerVault(r)
	if err != nil {
		writeError(w, err)
		return
	}

	credentials, err := s.credentials.ListCredentials(r.Context(), vaultID)
	if err != nil {
		writeError(w, platformerrors.Wrap(platformerrors.CodeUnknown, "list credentials", err))
		return
	}
	now := s.clock().UTC()
	views := make([]credentialView, 0, len(credentials))
	for _, credential := range credentials {
		views = append(views, s.credentialView(credential, now))
	}
	writeJSON(w, http.StatusOK, listCredentialsResponse{
		Credentials: views,
		TTLSeconds:  int64(s.credentialTTL() / time.Second),
	})
}

// handleCredentialRoutes dispatches /credentials/{id}/{action} paths.
func (s *Server) handleCredentialRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/credentials/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	credentialID := parts[0]

	switch parts[1] {
	case "verify":
		s.handleVerifyCredential(w, r, credentialID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleVerifyCredential(w http.ResponseWriter, r *http.Request, credentialID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	vaultID, err := s.bearerVault(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Ownership check before the live lookup so one vault cannot trigger
	// verification work for another.
	credential, err := s.credentials.GetCredential(r.Context(), credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, platformerrors.New(platformerrors.CodeNotFound, "credential not found"))
			return
		}
		writeError(w, platformerrors.Wrap(platformerrors.CodeUnknown, "load credential", err))
		return
	}
	if credential.VaultID != vaultID {
		writeError(w, platformerrors.New(platformerrors.CodeNotFound, "credential not found"))
		return
	}

	verified, err := s.verifier.Verify(r.Context(), credentialID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.credentialView(verified, s.clock().UTC()))
}

func (s *Server) credentialTTL() time.Duration {
	if s.ttl > 0 {
		return s.ttl
	}
	return domain.DefaultTTL
}

func (s *Server) credentialView(credential domain.Credential, now time.Time) credentialView {
	view := credentialView{
		ID:           credential.ID,
		Kind:         credential.Kind,
		ChainID:      credential.Metadata.ChainID,
		TokenAddress: credential.Metadata.TokenAddress,
		Balance:      credential.Metadata.Balance.String(),
		Usable:       domain.Usable(credential, now, s.credentialTTL()),
	}
	if credential.VerifiedAt != nil {
		view.VerifiedAt = credential.VerifiedAt.UTC().Format(time.RFC3339)
	}
	return view
}

// Package api exposes vault registration and credential lifecycle endpoints
// over HTTP. Sessions scope every credential operation to the vault that
// created it; there are no user accounts.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
	"github.com/veilworld/veilworld/internal/services/vault/app"
	"github.com/veilworld/veilworld/internal/services/vault/storage"
)

// Server hosts the vault and credential HTTP endpoints.
type Server struct {
	vaults      storage.VaultStore
	credentials storage.CredentialStore
	verifier    *app.Verifier
	sessions    *app.Sessions
	ttl         time.Duration
	clock       func() time.Time
}

// NewServer builds a vault API server. A zero ttl falls back to the default
// credential TTL; a nil clock defaults to time.Now.
func NewServer(vaults storage.VaultStore, credentials storage.CredentialStore, verifier *app.Verifier, sessions *app.Sessions, ttl time.Duration, clock func() time.Time) *Server {
	if clock == nil {
		clock = time.Now
	}
	return &Server{
		vaults:      vaults,
		credentials: credentials,
		verifier:    verifier,
		sessions:    sessions,
		ttl:         ttl,
		clock:       clock,
	}
}

// RegisterRoutes registers vault HTTP endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/vaults", s.handleVaults)
	mux.HandleFunc("/credentials", s.handleCredentials)
	mux.HandleFunc("/credentials/", s.handleCredentialRoutes)
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// bearerVault resolves the session token on a request to its vault.
func (s *Server) bearerVault(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", platformerrors.New(platformerrors.CodeSessionInvalid, "missing bearer token")
	}
	return s.sessions.VaultID(token)
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := platformerrors.CodeOf(err)
	body := errorBody{Code: string(code), Message: err.Error()}
	var domainErr *platformerrors.Error
	if errors.As(err, &domainErr) {
		body.Metadata = domainErr.Metadata
	}
	writeJSON(w, code.HTTPStatus(), body)
}

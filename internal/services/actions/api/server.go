// Package api exposes the action submission endpoint. Authorization happens
// synchronously in the engine; execution is asynchronous, so an accepted
// submission only promises that the action was queued.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	platformerrors "github.com/veilworld/veilworld/internal/platform/errors"
	"github.com/veilworld/veilworld/internal/services/actions/app"
	"github.com/veilworld/veilworld/internal/services/actions/domain"
	"github.com/veilworld/veilworld/internal/services/actions/storage"
)

// executionNotice is shown to every submitter; the executor polls on an
// interval, so completion is not immediate.
const executionNotice = "Action queued. Execution usually happens within 1-2 minutes."

// Server hosts the action HTTP endpoints.
type Server struct {
	engine *app.Engine
	queue  storage.QueueStore
}

// NewServer builds an action API server.
func NewServer(engine *app.Engine, queue storage.QueueStore) *Server {
	return &Server{engine: engine, queue: queue}
}

// RegisterRoutes registers action HTTP endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/actions", s.handleSubmit)
	mux.HandleFunc("/actions/", s.handleActionRoutes)
}

type submitRequest struct {
	PostID       string `json:"post_id"`
	Kind         string `json:"kind"`
	AsReply      bool   `json:"as_reply"`
	CredentialID string `json:"credential_id"`
	Proof        string `json:"proof"`
	Signature    string `json:"signature"`
}

type submitResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
	Notice    string `json:"notice"`
}

type requestView struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidArgument, "invalid request body"))
		return
	}
	kind, err := domain.ParseKind(body.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	proofBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body.Proof))
	if err != nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidArgument, "proof must be base64"))
		return
	}
	signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body.Signature))
	if err != nil {
		writeError(w, platformerrors.New(platformerrors.CodeInvalidArgument, "signature must be base64"))
		return
	}

	decision, err := s.engine.AuthorizeAndEnqueue(r.Context(), app.Submission{
		PostID:       strings.TrimSpace(body.PostID),
		Kind:         kind,
		AsReply:      body.AsReply,
		CredentialID: strings.TrimSpace(body.CredentialID),
		Proof:        proofBytes,
		Signature:    signature,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{
		RequestID: decision.RequestID,
		Duplicate: decision.Duplicate,
		Notice:    executionNotice,
	})
}

// handleActionRoutes dispatches /actions/{id} status lookups.
func (s *Server) handleActionRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := strings.TrimPrefix(r.URL.Path, "/actions/")
	if requestID == "" || strings.Contains(requestID, "/") {
		http.NotFound(w, r)
		return
	}

	request, err := s.queue.GetRequest(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, platformerrors.New(platformerrors.CodeNotFound, "request not found"))
			return
		}
		writeError(w, platformerrors.Wrap(platformerrors.CodeUnknown, "load request", err))
		return
	}
	writeJSON(w, http.StatusOK, requestView{
		ID:        request.ID,
		PostID:    request.PostID,
		Kind:      string(request.Kind),
		Status:    string(request.Status),
		Attempts:  request.Attempts,
		LastError: request.LastError,
		CreatedAt: request.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: request.UpdatedAt.UTC().Format(time.RFC3339),
	})
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

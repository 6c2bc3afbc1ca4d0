package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/veilworld/veilworld/internal/platform/timeouts"
)

// HTTPSubmitter delivers submissions to the action API over HTTP.
type HTTPSubmitter struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSubmitter builds a submitter against the API base URL. A nil
// httpClient gets a default with the external call timeout.
func NewHTTPSubmitter(baseURL string, httpClient *http.Client) (*HTTPSubmitter, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.ExternalCall}
	}
	return &HTTPSubmitter{baseURL: baseURL, httpClient: httpClient}, nil
}

type submitPayload struct {
	PostID       string `json:"post_id"`
	Kind         string `json:"kind"`
	AsReply      bool   `json:"as_reply"`
	CredentialID string `json:"credential_id"`
	Proof        string `json:"proof"`
	Signature    string `json:"signature"`
}

type submitAnswer struct {
	RequestID string `json:"request_id"`
	Duplicate bool   `json:"duplicate"`
	Notice    string `json:"notice"`
}

type submitError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Submit posts the submission and decodes the API's decision.
func (s *HTTPSubmitter) Submit(ctx context.Context, submission Submission) (Result, error) {
	raw, err := json.Marshal(submitPayload{
		PostID:       submission.PostID,
		Kind:         submission.Kind,
		AsReply:      submission.AsReply,
		CredentialID: submission.CredentialID,
		Proof:        base64.StdEncoding.EncodeToString(submission.Proof),
		Signature:    base64.StdEncoding.EncodeToString(submission.Signature),
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode submission: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/actions", bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("build submission request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.httpClient.Do(request)
	if err != nil {
		return Result{}, fmt.Errorf("call action api: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusAccepted {
		var apiErr submitError
		if err := json.NewDecoder(response.Body).Decode(&apiErr); err != nil || apiErr.Code == "" {
			return Result{}, fmt.Errorf("action api returned %s", response.Status)
		}
		return Result{}, fmt.Errorf("action rejected (%s): %s", apiErr.Code, apiErr.Message)
	}

	var answer submitAnswer
	if err := json.NewDecoder(response.Body).Decode(&answer); err != nil {
		return Result{}, fmt.Errorf("decode submission response: %w", err)
	}
	return Result{
		RequestID: answer.RequestID,
		Duplicate: answer.Duplicate,
		Notice:    answer.Notice,
	}, nil
}

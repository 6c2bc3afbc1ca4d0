package platformapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/veilworld/veilworld/internal/services/executor/domain"
)

func TestDeletePostTreatsMissingAsDeleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key", server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.DeletePost(context.Background(), "0xgone"); err != nil {
		t.Fatalf("delete missing post: %v", err)
	}
}

func TestDeletePostRetriesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key", server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.DeletePost(context.Background(), "0xpost")
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsPermanent(err) {
		t.Fatalf("server error marked permanent: %v", err)
	}
}

func TestGetPostMissingIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key", server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.GetPost(context.Background(), "0xgone")
	if !domain.IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
}

func TestPublishAndReplySendAuthorizedRequests(t *testing.T) {
	var requests []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		requests = append(requests, body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ext-1"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "key", server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Publish(context.Background(), "hello"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	externalID, err := client.Reply(context.Background(), "777", "hi again")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if externalID != "ext-1" {
		t.Fatalf("external id = %q", externalID)
	}

	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}
	if requests[0]["reply_to"] != "" {
		t.Fatalf("publish carried reply_to %q", requests[0]["reply_to"])
	}
	if requests[1]["reply_to"] != "777" {
		t.Fatalf("reply reply_to = %q", requests[1]["reply_to"])
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  ", "key", nil); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

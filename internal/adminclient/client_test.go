package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dwizi/project-assistant/internal/config"
)

func TestClientChat(t *testing.T) {
	t.Parallel()

	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/assistant/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversation_id":"c1","response":"Listo.\n\n✅ Acción ejecutada: ok","action":{"type":"clear_cache","success":true,"message":"ok"}}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	response, err := client.Chat(context.Background(), ChatRequest{ProjectID: "p1", RequesterID: "u1", Message: "limpia la caché"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got.ProjectID != "p1" || got.RequesterID != "u1" || got.Message != "limpia la caché" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
	if response.ConversationID != "c1" || response.Action == nil || !response.Action.Success {
		t.Fatalf("unexpected response payload: %+v", response)
	}
}

func TestClientListAuditEncodesFilters(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("project_id") != "p1" || query.Get("failed_only") != "true" || query.Get("action") != "get_logs" || query.Get("limit") != "5" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"audit_1","action":"get_logs","success":false,"params":{"limit":5}}],"count":1}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	items, err := client.ListAudit(context.Background(), AuditQuery{ProjectID: "p1", Action: "get_logs", FailedOnly: true, Limit: 5})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(items) != 1 || items[0].ID != "audit_1" || string(items[0].Params) != `{"limit":5}` {
		t.Fatalf("unexpected items: %+v", items)
	}
	if _, err := client.ListAudit(context.Background(), AuditQuery{}); err == nil {
		t.Fatal("expected error without project id")
	}
}

func TestClientReturnsAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"turn rate limited"}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	_, err := client.Chat(context.Background(), ChatRequest{ProjectID: "p1", RequesterID: "u1", Message: "hola"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "turn rate limited" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientWithTimeoutClonesClient(t *testing.T) {
	t.Parallel()

	base := &Client{
		baseURL: "https://example.com",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	updated := base.WithTimeout(3 * time.Second)
	if updated == nil {
		t.Fatal("expected updated client")
	}
	if updated == base {
		t.Fatal("expected timeout update to clone client")
	}
	if updated.http == base.http {
		t.Fatal("expected timeout update to clone http client")
	}
	if updated.http.Timeout != 3*time.Second {
		t.Fatalf("expected timeout 3s, got %s", updated.http.Timeout)
	}
	if base.http.Timeout != 15*time.Second {
		t.Fatalf("expected original timeout unchanged, got %s", base.http.Timeout)
	}
}

func TestNewRespectsAdminHTTPTimeoutConfig(t *testing.T) {
	t.Parallel()

	client, err := New(config.Config{
		AdminAPIURL:         "https://example.com/",
		AdminHTTPTimeoutSec: 42,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.http.Timeout != 42*time.Second {
		t.Fatalf("expected timeout 42s, got %s", client.http.Timeout)
	}
	if client.baseURL != "https://example.com" {
		t.Fatalf("expected trimmed base url, got %s", client.baseURL)
	}
}

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dwizi/project-assistant/internal/llm"
)

func TestReplyJoinsTextBlocks(t *testing.T) {
	var receivedKey, receivedVersion, receivedSystem string
	var receivedMessages int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/messages" {
			http.NotFound(w, req)
			return
		}
		receivedKey = req.Header.Get("x-api-key")
		receivedVersion = req.Header.Get("anthropic-version")
		var body struct {
			System   string           `json:"system"`
			Messages []map[string]any `json:"messages"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		receivedSystem = body.System
		receivedMessages = len(body.Messages)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Reviso los logs."},
				{"type": "text", "text": "[ACTION: get_logs]"},
			},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "key", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reply, err := client.Reply(context.Background(), llm.Request{
		SystemPrompt: "sistema",
		History:      []llm.Message{{Role: llm.RoleUser, Content: "hola"}, {Role: llm.RoleAssistant, Content: "hola"}},
		Text:         "¿hay errores?",
	})
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	if reply != "Reviso los logs.\n[ACTION: get_logs]" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if receivedKey != "key" || receivedVersion != "2023-06-01" {
		t.Fatalf("unexpected headers: %s %s", receivedKey, receivedVersion)
	}
	if receivedSystem != "sistema" || receivedMessages != 3 {
		t.Fatalf("unexpected payload: system=%s messages=%d", receivedSystem, receivedMessages)
	}
}

func TestReplyWithoutKeyIsUnavailable(t *testing.T) {
	_, err := New(Config{}, nil).Reply(context.Background(), llm.Request{Text: "hola"})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestReplyFailsOnStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{APIKey: "key", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := client.Reply(context.Background(), llm.Request{Text: "hola"}); err == nil {
		t.Fatal("expected error on 429")
	}
}

package openai

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

func TestReplySendsHistoryAndSanitizes(t *testing.T) {
	var receivedAuth, receivedModel string
	var receivedMaxTokens int
	var receivedRoles []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/chat/completions" {
			http.NotFound(w, req)
			return
		}
		receivedAuth = req.Header.Get("Authorization")
		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		receivedModel = body.Model
		receivedMaxTokens = body.MaxTokens
		for _, message := range body.Messages {
			receivedRoles = append(receivedRoles, message.Role)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl-1",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "<think>x</think>Listo.\n[ACTION: clear_cache]"}},
			},
		})
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL, Model: "default-model"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	reply, err := client.Reply(context.Background(), llm.Request{
		Model:        "gpt-4o-mini",
		MaxTokens:    300,
		SystemPrompt: "Eres el asistente.",
		History:      []llm.Message{{Role: llm.RoleUser, Content: "hola"}, {Role: llm.RoleAssistant, Content: "hola!"}},
		Text:         "clear cache please",
	})
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	if reply != "Listo.\n[ACTION: clear_cache]" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if receivedAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %s", receivedAuth)
	}
	if receivedModel != "gpt-4o-mini" || receivedMaxTokens != 300 {
		t.Fatalf("unexpected model/max tokens: %s %d", receivedModel, receivedMaxTokens)
	}
	want := []string{"system", "user", "assistant", "user"}
	if len(receivedRoles) != len(want) {
		t.Fatalf("unexpected roles: %v", receivedRoles)
	}
	for i := range want {
		if receivedRoles[i] != want[i] {
			t.Fatalf("unexpected roles: %v", receivedRoles)
		}
	}
}

func TestReplyWithoutKeyIsUnavailable(t *testing.T) {
	client := New(Config{BaseURL: "https://api.openai.com/v1"}, nil)
	_, err := client.Reply(context.Background(), llm.Request{Text: "hola"})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestReplySurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	client := New(Config{APIKey: "secret", BaseURL: server.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := client.Reply(context.Background(), llm.Request{Text: "hola"}); err == nil {
		t.Fatal("expected error for failed completion")
	}
}

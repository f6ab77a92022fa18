package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dwizi/project-assistant/internal/store"
)

func (r *router) handleConversations(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is unavailable"})
		return
	}
	query := req.URL.Query()
	items, err := r.deps.Assistant.ListConversations(
		req.Context(),
		strings.TrimSpace(query.Get("project_id")),
		strings.TrimSpace(query.Get("requester_id")),
		queryLimit(req, 50),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"id":                   item.ID,
			"title":                item.Title,
			"message_count":        item.MessageCount,
			"started_at_unix":      item.StartedAt.Unix(),
			"last_message_at_unix": item.LastMessageAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payload,
		"count": len(payload),
	})
}

func (r *router) handleConversation(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is unavailable"})
		return
	}
	query := req.URL.Query()
	conversation, err := r.deps.Assistant.GetConversation(
		req.Context(),
		strings.TrimSpace(query.Get("id")),
		strings.TrimSpace(query.Get("requester_id")),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationToMap(conversation))
}

type archiveRequest struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
}

func (r *router) handleConversationArchive(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "assistant is unavailable"})
		return
	}
	var payload archiveRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if err := r.deps.Assistant.ArchiveConversation(req.Context(), payload.ID, payload.RequesterID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       strings.TrimSpace(payload.ID),
		"archived": true,
	})
}

func conversationToMap(conversation store.Conversation) map[string]any {
	messages := make([]map[string]any, 0, len(conversation.Messages))
	for _, message := range conversation.Messages {
		item := map[string]any{
			"seq":             message.Seq,
			"role":            message.Role,
			"content":         message.Content,
			"created_at_unix": message.CreatedAt.Unix(),
		}
		if message.Action != nil {
			item["action"] = message.Action
		}
		messages = append(messages, item)
	}
	return map[string]any{
		"id":                   conversation.ID,
		"project_id":           conversation.ProjectID,
		"requester_id":         conversation.RequesterID,
		"title":                conversation.Title,
		"archived":             conversation.Archived,
		"actions_requested":    conversation.ActionsRequested,
		"actions_succeeded":    conversation.ActionsSucceeded,
		"message_count":        conversation.MessageCount,
		"started_at_unix":      conversation.StartedAt.Unix(),
		"last_message_at_unix": conversation.LastMessageAt.Unix(),
		"messages":             messages,
	}
}

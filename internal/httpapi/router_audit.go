package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dwizi/project-assistant/internal/store"
)

func (r *router) handleAudit(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	query := req.URL.Query()
	projectID := strings.TrimSpace(query.Get("project_id"))
	if projectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project_id query parameter is required"})
		return
	}
	items, err := r.deps.Store.ListActionAudits(req.Context(), store.ListActionAuditsInput{
		ProjectID:  projectID,
		ActorID:    query.Get("actor_id"),
		ActionName: query.Get("action"),
		FailedOnly: queryBool(req, "failed_only"),
		Limit:      queryLimit(req, 100),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, auditToMap(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payload,
		"count": len(payload),
	})
}

func auditToMap(item store.ActionAudit) map[string]any {
	payload := map[string]any{
		"id":                   item.ID,
		"project_id":           item.ProjectID,
		"conversation_id":      item.ConversationID,
		"actor_id":             item.ActorID,
		"action":               item.ActionName,
		"success":              item.Success,
		"error_message":        item.ErrorMessage,
		"started_at_unix_ms":   item.StartedAt.UnixMilli(),
		"completed_at_unix_ms": item.CompletedAt.UnixMilli(),
		"duration_ms":          item.DurationMs,
		"params":               json.RawMessage(item.ParamsJSON),
	}
	if strings.TrimSpace(item.ResultJSON) != "" {
		payload["result"] = json.RawMessage(item.ResultJSON)
	}
	return payload
}

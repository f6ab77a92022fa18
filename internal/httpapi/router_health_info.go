package httpapi

import (
	"net/http"

	"github.com/dwizi/project-assistant/internal/heartbeat"
)

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "store is unavailable"})
		return
	}
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	if r.deps.Heartbeat != nil && len(r.deps.ReadyComponents) > 0 && !r.deps.Heartbeat.Ready(r.deps.ReadyComponents...) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "runtime components are not healthy"})
		return
	}
	if r.auditDegraded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "action audit writes are failing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// auditDegraded is true while action audit writes are failing. A runtime that has not
// audited anything yet is still ready.
func (r *router) auditDegraded() bool {
	if r.deps.Heartbeat == nil {
		return false
	}
	for _, component := range r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter).Components {
		if component.Name == heartbeat.ComponentAudit {
			return component.BaseState == heartbeat.StateDegraded
		}
	}
	return false
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *router) handleHeartbeatTransitions(w http.ResponseWriter, req *http.Request) {
	if r.deps.Transitions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat monitor is disabled",
		})
		return
	}
	items := r.deps.Transitions.Recent()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":         "project-assistant",
		"version":      r.deps.Version,
		"environment":  r.deps.Config.Environment,
		"llm_provider": r.deps.Config.LLMProvider,
		"llm_model":    r.deps.Config.LLMModel,
	}
	if r.deps.Actions != nil {
		payload["actions"] = r.deps.Actions.Names()
	}
	writeJSON(w, http.StatusOK, payload)
}

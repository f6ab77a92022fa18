package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dwizi/project-assistant/internal/store"
)

// projectReadyRequest is sent by the provisioning pipeline once a project deploys.
type projectReadyRequest struct {
	ProjectID            string `json:"project_id"`
	Name                 string `json:"name"`
	DeploymentURL        string `json:"deployment_url"`
	DataProjectRef       string `json:"data_project_ref"`
	DeploymentProjectRef string `json:"deployment_project_ref"`
	Model                string `json:"model"`
	MaxTokens            int    `json:"max_tokens"`
	SystemPrompt         string `json:"system_prompt"`
}

func (r *router) handleProjectReady(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var payload projectReadyRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.ProjectID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project_id is required"})
		return
	}
	project, err := r.deps.Store.UpsertProject(req.Context(), store.UpsertProjectInput{
		ID:             payload.ProjectID,
		Name:           payload.Name,
		Status:         store.ProjectStatusReady,
		DeploymentURL:  payload.DeploymentURL,
		DataProjectRef: payload.DataProjectRef,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	model := strings.TrimSpace(payload.Model)
	if model == "" {
		model = r.deps.Config.LLMModel
	}
	maxTokens := payload.MaxTokens
	if maxTokens < 1 {
		maxTokens = r.deps.Config.LLMMaxTokens
	}
	systemPrompt := strings.TrimSpace(payload.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = r.deps.Config.DefaultSystemPrompt
	}
	config, created, err := r.deps.Store.ProvisionAssistant(req.Context(), store.ProvisionAssistantInput{
		ProjectID:            project.ID,
		Model:                model,
		MaxTokens:            maxTokens,
		SystemPrompt:         systemPrompt,
		DeploymentProjectRef: payload.DeploymentProjectRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	r.deps.Logger.Info("assistant provisioned", "project_id", project.ID, "assistant_id", config.ID, "created", created)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"project_id":             project.ID,
		"assistant_id":           config.ID,
		"created":                created,
		"model":                  config.Model,
		"max_tokens":             config.MaxTokens,
		"deployment_project_ref": config.DeploymentProjectRef,
	})
}

package adminclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dwizi/project-assistant/internal/config"
)

type Client struct {
	baseURL string
	http    *http.Client
}

// APIError is a non-2xx answer from the runtime API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

type ChatRequest struct {
	ProjectID      string `json:"project_id"`
	RequesterID    string `json:"requester_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type ActionSummary struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ChatResponse struct {
	ConversationID string         `json:"conversation_id"`
	Response       string         `json:"response"`
	Action         *ActionSummary `json:"action,omitempty"`
}

type ConversationSummary struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	MessageCount      int    `json:"message_count"`
	StartedAtUnix     int64  `json:"started_at_unix"`
	LastMessageAtUnix int64  `json:"last_message_at_unix"`
}

type ListConversationsResponse struct {
	Items []ConversationSummary `json:"items"`
	Count int                   `json:"count"`
}

type Message struct {
	Seq           int            `json:"seq"`
	Role          string         `json:"role"`
	Content       string         `json:"content"`
	Action        *ActionSummary `json:"action,omitempty"`
	CreatedAtUnix int64          `json:"created_at_unix"`
}

type Conversation struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	RequesterID       string    `json:"requester_id"`
	Title             string    `json:"title"`
	Archived          bool      `json:"archived"`
	ActionsRequested  []string  `json:"actions_requested"`
	ActionsSucceeded  []string  `json:"actions_succeeded"`
	MessageCount      int       `json:"message_count"`
	StartedAtUnix     int64     `json:"started_at_unix"`
	LastMessageAtUnix int64     `json:"last_message_at_unix"`
	Messages          []Message `json:"messages"`
}

type AuditQuery struct {
	ProjectID  string
	ActorID    string
	Action     string
	FailedOnly bool
	Limit      int
}

type ActionAudit struct {
	ID                string          `json:"id"`
	ProjectID         string          `json:"project_id"`
	ConversationID    string          `json:"conversation_id"`
	ActorID           string          `json:"actor_id"`
	Action            string          `json:"action"`
	Success           bool            `json:"success"`
	ErrorMessage      string          `json:"error_message"`
	StartedAtUnixMs   int64           `json:"started_at_unix_ms"`
	CompletedAtUnixMs int64           `json:"completed_at_unix_ms"`
	DurationMs        int64           `json:"duration_ms"`
	Params            json.RawMessage `json:"params"`
	Result            json.RawMessage `json:"result,omitempty"`
}

type ListAuditResponse struct {
	Items []ActionAudit `json:"items"`
	Count int           `json:"count"`
}

type ProjectReadyRequest struct {
	ProjectID            string `json:"project_id"`
	Name                 string `json:"name,omitempty"`
	DeploymentURL        string `json:"deployment_url,omitempty"`
	DataProjectRef       string `json:"data_project_ref,omitempty"`
	DeploymentProjectRef string `json:"deployment_project_ref,omitempty"`
	Model                string `json:"model,omitempty"`
	MaxTokens            int    `json:"max_tokens,omitempty"`
	SystemPrompt         string `json:"system_prompt,omitempty"`
}

type ProjectReadyResponse struct {
	ProjectID            string `json:"project_id"`
	AssistantID          string `json:"assistant_id"`
	Created              bool   `json:"created"`
	Model                string `json:"model"`
	MaxTokens            int    `json:"max_tokens"`
	DeploymentProjectRef string `json:"deployment_project_ref"`
}

func New(cfg config.Config) (*Client, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.AdminTLSSkipVerify,
	}
	if cfg.AdminTLSCAFile != "" {
		caBytes, err := os.ReadFile(cfg.AdminTLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read admin tls ca file: %w", err)
		}
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM(caBytes); !ok {
			return nil, fmt.Errorf("parse admin tls ca file")
		}
		tlsConfig.RootCAs = certPool
	}
	timeout := time.Duration(cfg.AdminHTTPTimeoutSec) * time.Second
	if timeout < time.Second {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.AdminAPIURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
			Timeout: timeout,
		},
	}, nil
}

func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	if timeout < time.Second {
		return c
	}
	clone := *c
	if c.http == nil {
		clone.http = &http.Client{Timeout: timeout}
		return &clone
	}
	httpClone := *c.http
	httpClone.Timeout = timeout
	clone.http = &httpClone
	return &clone
}

func (c *Client) Chat(ctx context.Context, input ChatRequest) (ChatResponse, error) {
	var response ChatResponse
	if err := c.postJSON(ctx, "/api/v1/assistant/chat", input, &response); err != nil {
		return ChatResponse{}, err
	}
	return response, nil
}

func (c *Client) ListConversations(ctx context.Context, projectID, requesterID string, limit int) ([]ConversationSummary, error) {
	query := url.Values{}
	query.Set("project_id", strings.TrimSpace(projectID))
	query.Set("requester_id", strings.TrimSpace(requesterID))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var response ListConversationsResponse
	if err := c.getJSON(ctx, "/api/v1/assistant/conversations?"+query.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) GetConversation(ctx context.Context, conversationID, requesterID string) (Conversation, error) {
	query := url.Values{}
	query.Set("id", strings.TrimSpace(conversationID))
	query.Set("requester_id", strings.TrimSpace(requesterID))
	var response Conversation
	if err := c.getJSON(ctx, "/api/v1/assistant/conversation?"+query.Encode(), &response); err != nil {
		return Conversation{}, err
	}
	return response, nil
}

func (c *Client) ArchiveConversation(ctx context.Context, conversationID, requesterID string) error {
	payload := map[string]string{
		"id":           strings.TrimSpace(conversationID),
		"requester_id": strings.TrimSpace(requesterID),
	}
	return c.postJSON(ctx, "/api/v1/assistant/conversation/archive", payload, nil)
}

func (c *Client) ListAudit(ctx context.Context, input AuditQuery) ([]ActionAudit, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	query := url.Values{}
	query.Set("project_id", projectID)
	if actor := strings.TrimSpace(input.ActorID); actor != "" {
		query.Set("actor_id", actor)
	}
	if action := strings.TrimSpace(input.Action); action != "" {
		query.Set("action", action)
	}
	if input.FailedOnly {
		query.Set("failed_only", "true")
	}
	if input.Limit > 0 {
		query.Set("limit", strconv.Itoa(input.Limit))
	}
	var response ListAuditResponse
	if err := c.getJSON(ctx, "/api/v1/assistant/audit?"+query.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) ProjectReady(ctx context.Context, input ProjectReadyRequest) (ProjectReadyResponse, error) {
	var response ProjectReadyResponse
	if err := c.postJSON(ctx, "/api/v1/projects/ready", input, &response); err != nil {
		return ProjectReadyResponse{}, err
	}
	return response, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return &APIError{StatusCode: res.StatusCode, Message: apiError.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

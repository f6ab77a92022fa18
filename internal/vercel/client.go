package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.vercel.com"

var ErrMissingToken = errors.New("vercel token is required")

// Target scopes a request to one platform project.
type Target struct {
	Token     string
	TeamID    string
	ProjectID string
}

type Deployment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	ReadyState string    `json:"ready_state"`
	Target     string    `json:"target,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Path      string    `json:"path,omitempty"`
}

type LogQuery struct {
	Since time.Time
	Until time.Time
	Limit int
	Level string
}

// APIError is returned for any non-2xx platform response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vercel api status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("vercel api status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PurgeCache invalidates every cached path of the project.
func (c *Client) PurgeCache(ctx context.Context, target Target) error {
	body := map[string]any{"paths": []string{"/*"}}
	return c.doJSON(ctx, target, http.MethodPost, "/v1/projects/"+url.PathEscape(target.ProjectID)+"/purge", nil, body, nil)
}

// LatestDeployment returns the most recent deployment, ok=false when the project has none.
func (c *Client) LatestDeployment(ctx context.Context, target Target) (Deployment, bool, error) {
	query := url.Values{}
	query.Set("projectId", target.ProjectID)
	query.Set("limit", "1")
	var response struct {
		Deployments []deploymentPayload `json:"deployments"`
	}
	if err := c.doJSON(ctx, target, http.MethodGet, "/v6/deployments", query, nil, &response); err != nil {
		return Deployment{}, false, err
	}
	if len(response.Deployments) == 0 {
		return Deployment{}, false, nil
	}
	return response.Deployments[0].toDeployment(), true, nil
}

// Redeploy creates a new deployment from the artifact of an existing one.
func (c *Client) Redeploy(ctx context.Context, target Target, source Deployment) (Deployment, error) {
	deployTarget := strings.TrimSpace(source.Target)
	if deployTarget == "" {
		deployTarget = "production"
	}
	name := strings.TrimSpace(source.Name)
	if name == "" {
		name = target.ProjectID
	}
	body := map[string]any{
		"name":         name,
		"deploymentId": source.ID,
		"target":       deployTarget,
	}
	var response deploymentPayload
	if err := c.doJSON(ctx, target, http.MethodPost, "/v13/deployments", nil, body, &response); err != nil {
		return Deployment{}, err
	}
	deployment := response.toDeployment()
	if deployment.CreatedAt.IsZero() {
		deployment.CreatedAt = time.Now().UTC()
	}
	return deployment, nil
}

func (c *Client) RecentLogs(ctx context.Context, target Target, logQuery LogQuery) ([]LogEntry, error) {
	query := url.Values{}
	if !logQuery.Since.IsZero() {
		query.Set("since", strconv.FormatInt(logQuery.Since.UnixMilli(), 10))
	}
	if !logQuery.Until.IsZero() {
		query.Set("until", strconv.FormatInt(logQuery.Until.UnixMilli(), 10))
	}
	if logQuery.Limit > 0 {
		query.Set("limit", strconv.Itoa(logQuery.Limit))
	}
	if level := strings.TrimSpace(logQuery.Level); level != "" {
		query.Set("level", level)
	}
	var response struct {
		Logs []logPayload `json:"logs"`
	}
	if err := c.doJSON(ctx, target, http.MethodGet, "/v1/projects/"+url.PathEscape(target.ProjectID)+"/logs", query, nil, &response); err != nil {
		return nil, err
	}
	entries := make([]LogEntry, 0, len(response.Logs))
	for _, item := range response.Logs {
		entries = append(entries, LogEntry{
			Timestamp: fromMillis(item.Timestamp),
			Level:     item.Level,
			Message:   item.Message,
			Source:    item.Source,
			Path:      item.Path,
		})
	}
	if logQuery.Limit > 0 && len(entries) > logQuery.Limit {
		entries = entries[:logQuery.Limit]
	}
	return entries, nil
}

type deploymentPayload struct {
	UID        string `json:"uid"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	State      string `json:"state"`
	ReadyState string `json:"readyState"`
	Target     string `json:"target"`
	Created    int64  `json:"created"`
	CreatedAt  int64  `json:"createdAt"`
}

func (p deploymentPayload) toDeployment() Deployment {
	id := p.ID
	if id == "" {
		id = p.UID
	}
	state := p.ReadyState
	if state == "" {
		state = p.State
	}
	created := p.CreatedAt
	if created == 0 {
		created = p.Created
	}
	deploymentURL := strings.TrimSpace(p.URL)
	if deploymentURL != "" && !strings.HasPrefix(deploymentURL, "http") {
		deploymentURL = "https://" + deploymentURL
	}
	return Deployment{
		ID:         id,
		Name:       p.Name,
		URL:        deploymentURL,
		ReadyState: strings.ToUpper(state),
		Target:     p.Target,
		CreatedAt:  fromMillis(created),
	}
}

type logPayload struct {
	Timestamp int64  `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Source    string `json:"source"`
	Path      string `json:"path"`
}

func fromMillis(value int64) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func (c *Client) doJSON(ctx context.Context, target Target, method, path string, query url.Values, body any, out any) error {
	token := strings.TrimSpace(target.Token)
	if token == "" {
		return ErrMissingToken
	}
	if query == nil {
		query = url.Values{}
	}
	if teamID := strings.TrimSpace(target.TeamID); teamID != "" {
		query.Set("teamId", teamID)
	}
	endpoint := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode vercel request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build vercel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vercel request: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read vercel response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(res.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode vercel response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

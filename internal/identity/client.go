package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("identity provider is not configured")

type Config struct {
	BaseURL     string
	ServiceKey  string
	RedirectURL string
	Timeout     time.Duration
}

// Client talks to the auth endpoints of the hosted identity provider.
type Client struct {
	baseURL     string
	serviceKey  string
	redirectURL string
	httpClient  *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		serviceKey:  strings.TrimSpace(cfg.ServiceKey),
		redirectURL: strings.TrimSpace(cfg.RedirectURL),
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.serviceKey != ""
}

// SendPasswordReset asks the provider to email a recovery link to email.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	payload, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/auth/v1/recover"
	if c.redirectURL != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(c.redirectURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build recovery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recovery request: %w", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("identity provider status %d: %s", res.StatusCode, errorMessage(body))
	}
	return nil
}

func errorMessage(body []byte) string {
	var decoded struct {
		Message          string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, value := range []string{decoded.Message, decoded.ErrorDescription, decoded.Error} {
			if strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	return strings.TrimSpace(string(body))
}

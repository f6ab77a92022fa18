package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/dwizi/project-assistant/internal/llm"
)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client builds the genai client on first use so construction never needs a context.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu  sync.Mutex
	api *genai.Client
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens < 1 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) Reply(ctx context.Context, request llm.Request) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing gemini api key", llm.ErrUnavailable)
	}
	contents := buildContents(request)
	if len(contents) == 0 {
		return "", nil
	}
	api, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	model := strings.TrimSpace(request.Model)
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := request.MaxTokens
	if maxTokens < 1 {
		maxTokens = c.cfg.MaxTokens
	}
	generateConfig := &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens)}
	if systemPrompt := strings.TrimSpace(request.SystemPrompt); systemPrompt != "" {
		generateConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	response, err := api.Models.GenerateContent(ctx, model, contents, generateConfig)
	if err != nil {
		c.logger.Error("gemini generate content failed", "model", model, "error", err)
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return llm.Sanitize(response.Text()), nil
}

func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	clientConfig := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(c.cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: c.cfg.Timeout},
	}
	if baseURL := strings.TrimSpace(c.cfg.BaseURL); baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	api, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.api = api
	return api, nil
}

func buildContents(request llm.Request) []*genai.Content {
	messages := request.Messages()
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		role := genai.Role(genai.RoleUser)
		if message.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, role))
	}
	return contents
}

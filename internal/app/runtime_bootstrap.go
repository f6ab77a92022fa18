package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dwizi/project-assistant/internal/actions"
	"github.com/dwizi/project-assistant/internal/assistant"
	"github.com/dwizi/project-assistant/internal/config"
	"github.com/dwizi/project-assistant/internal/heartbeat"
	"github.com/dwizi/project-assistant/internal/httpapi"
	"github.com/dwizi/project-assistant/internal/identity"
	"github.com/dwizi/project-assistant/internal/llm"
	"github.com/dwizi/project-assistant/internal/llm/anthropic"
	"github.com/dwizi/project-assistant/internal/llm/gemini"
	"github.com/dwizi/project-assistant/internal/llm/openai"
	"github.com/dwizi/project-assistant/internal/prompts"
	"github.com/dwizi/project-assistant/internal/safety"
	"github.com/dwizi/project-assistant/internal/scheduler"
	"github.com/dwizi/project-assistant/internal/store"
	"github.com/dwizi/project-assistant/internal/vercel"
	"github.com/dwizi/project-assistant/internal/watcher"
)

func New(cfg config.Config, logger *slog.Logger, version string) (*Runtime, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := scheduler.ValidateSchedule(cfg.HealthSweepCron); err != nil {
		return nil, err
	}

	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	heartbeatRegistry := heartbeat.NewRegistry()
	heartbeatRegistry.Starting("runtime", "booting")
	heartbeatRegistry.Starting(heartbeat.ComponentAPI, "initializing")
	heartbeatRegistry.Starting(heartbeat.ComponentScheduler, "initializing")
	heartbeatRegistry.Starting(heartbeat.ComponentWatcher, "initializing")

	toolkit := actions.Toolkit{
		Profiles:     sqlStore,
		Projects:     sqlStore,
		Platform:     vercel.New(cfg.VercelAPIBase, time.Duration(cfg.VercelTimeoutSec)*time.Second),
		ProbeTimeout: time.Duration(cfg.HealthProbeTimeoutSec) * time.Second,
	}
	identityClient := identity.New(identity.Config{
		BaseURL:     cfg.IdentityURL,
		ServiceKey:  cfg.IdentityServiceKey,
		RedirectURL: cfg.IdentityRedirectURL,
		Timeout:     time.Duration(cfg.IdentityTimeoutSec) * time.Second,
	})
	if identityClient.Configured() {
		toolkit.Identity = identityClient
	} else {
		logger.Warn("identity provider not configured, reset_password will fail")
	}
	registry := actions.NewRegistry(toolkit)
	executor := actions.NewExecutor(registry, sqlStore, actions.ExecutorConfig{
		Timeout: time.Duration(cfg.ActionTimeoutSec) * time.Second,
		Health:  heartbeatRegistry,
	}, logger)

	catalog, err := prompts.NewStore(cfg.PromptCatalogFile, logger)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}
	limiter := safety.New(safety.Config{
		RateLimitPerWindow: cfg.TurnRateLimitPerWindow,
		RateLimitWindow:    time.Duration(cfg.TurnRateLimitWindowSec) * time.Second,
	})
	credentials := assistant.StaticCredentials{
		DeploymentToken:  cfg.VercelToken,
		DeploymentTeamID: cfg.VercelTeamID,
	}
	if strings.TrimSpace(cfg.VercelToken) == "" {
		logger.Warn("vercel token not configured, deployment actions will fail")
	}

	service := assistant.NewService(assistant.Dependencies{
		Store:       sqlStore,
		Responder:   newResponder(cfg, logger),
		Actions:     executor,
		Prompts:     catalog,
		Limiter:     limiter,
		Credentials: credentials,
		Health:      heartbeatRegistry,
	}, assistant.Config{
		HistoryWindow:       cfg.HistoryWindow,
		DefaultSystemPrompt: cfg.DefaultSystemPrompt,
	}, logger)

	schedulerService := scheduler.New(sqlStore, executor, credentials, scheduler.Config{
		Schedule:    cfg.HealthSweepCron,
		Concurrency: cfg.HealthSweepConcurrency,
	}, logger)
	schedulerService.SetHeartbeatReporter(heartbeatRegistry)

	var watchService *watcher.Service
	if catalog.Path() != "" {
		watchService, err = watcher.New([]string{catalog.Path()}, logger, func(ctx context.Context, path string) {
			if err := catalog.Reload(); err != nil {
				heartbeatRegistry.Degrade(heartbeat.ComponentWatcher, "prompt catalog reload failed", err)
				return
			}
			heartbeatRegistry.Beat(heartbeat.ComponentWatcher, "prompt catalog reloaded")
		})
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
	} else {
		heartbeatRegistry.Disabled(heartbeat.ComponentWatcher, "no prompt catalog file")
	}

	staleAfter := time.Duration(cfg.HeartbeatStaleSec) * time.Second
	heartbeatMonitor := heartbeat.NewMonitor(heartbeatRegistry, heartbeat.MonitorConfig{
		Interval:   staleAfter / 4,
		StaleAfter: staleAfter,
		Logger:     logger,
	})
	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg,
		Store:               sqlStore,
		Assistant:           service,
		Actions:             registry,
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: staleAfter,
		ReadyComponents:     []string{heartbeat.ComponentAPI},
		Transitions:         heartbeatMonitor,
		Version:             version,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	heartbeatRegistry.Beat("runtime", "runtime initialized")

	return &Runtime{
		cfg:              cfg,
		logger:           logger,
		store:            sqlStore,
		httpServer:       httpServer,
		watcher:          watchService,
		scheduler:        schedulerService,
		limiter:          limiter,
		heartbeat:        heartbeatRegistry,
		heartbeatMonitor: heartbeatMonitor,
	}, nil
}

func newResponder(cfg config.Config, logger *slog.Logger) llm.Responder {
	timeout := time.Duration(cfg.LLMTimeoutSec) * time.Second
	switch strings.ToLower(cfg.LLMProvider) {
	case "anthropic", "claude":
		return anthropic.New(anthropic.Config{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   timeout,
		}, logger.With("component", "llm-anthropic"))
	case "gemini", "google":
		return gemini.New(gemini.Config{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   timeout,
		}, logger.With("component", "llm-gemini"))
	default:
		// Any OpenAI-compatible endpoint, local servers included.
		return openai.New(openai.Config{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
			Timeout:   timeout,
		}, logger.With("component", "llm-openai"))
	}
}

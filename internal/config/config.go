package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "PROJECT_ASSISTANT"

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	LLMProvider   string // openai | anthropic | gemini
	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMMaxTokens  int
	LLMTimeoutSec int

	DefaultSystemPrompt string
	PromptCatalogFile   string
	HistoryWindow       int

	VercelAPIBase    string
	VercelToken      string
	VercelTeamID     string
	VercelTimeoutSec int

	IdentityURL         string
	IdentityServiceKey  string
	IdentityRedirectURL string
	IdentityTimeoutSec  int

	ActionTimeoutSec      int
	HealthProbeTimeoutSec int

	TurnRateLimitPerWindow int
	TurnRateLimitWindowSec int

	HealthSweepCron        string
	HealthSweepConcurrency int

	HeartbeatStaleSec int

	AdminAPIURL         string
	AdminTLSSkipVerify  bool
	AdminTLSCAFile      string
	AdminHTTPTimeoutSec int
}

// FromEnv loads configuration from the environment only.
func FromEnv() Config {
	// Without a config file Load has no error path.
	cfg, _ := Load("")
	return cfg
}

// Load reads defaults, an optional YAML file and PROJECT_ASSISTANT_* environment
// variables, in increasing order of precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var loadErr error
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				loadErr = fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	dataDir := v.GetString("data_dir")
	dbPath := strings.TrimSpace(v.GetString("db_path"))
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "project-assistant", "assistant.sqlite")
	}

	cfg := Config{
		Environment: v.GetString("environment"),
		HTTPAddr:    v.GetString("http_addr"),
		DataDir:     dataDir,
		DBPath:      dbPath,

		LLMProvider:   strings.ToLower(strings.TrimSpace(v.GetString("llm_provider"))),
		LLMBaseURL:    strings.TrimSpace(v.GetString("llm_base_url")),
		LLMAPIKey:     strings.TrimSpace(v.GetString("llm_api_key")),
		LLMModel:      strings.TrimSpace(v.GetString("llm_model")),
		LLMMaxTokens:  positiveOr(v.GetInt("llm_max_tokens"), 1024),
		LLMTimeoutSec: positiveOr(v.GetInt("llm_timeout_seconds"), 60),

		DefaultSystemPrompt: strings.TrimSpace(v.GetString("default_system_prompt")),
		PromptCatalogFile:   strings.TrimSpace(v.GetString("prompt_catalog_file")),
		HistoryWindow:       positiveOr(v.GetInt("history_window"), 20),

		VercelAPIBase:    strings.TrimRight(strings.TrimSpace(v.GetString("vercel_api_base")), "/"),
		VercelToken:      strings.TrimSpace(v.GetString("vercel_token")),
		VercelTeamID:     strings.TrimSpace(v.GetString("vercel_team_id")),
		VercelTimeoutSec: positiveOr(v.GetInt("vercel_timeout_seconds"), 15),

		IdentityURL:         strings.TrimRight(strings.TrimSpace(v.GetString("identity_url")), "/"),
		IdentityServiceKey:  strings.TrimSpace(v.GetString("identity_service_key")),
		IdentityRedirectURL: strings.TrimSpace(v.GetString("identity_redirect_url")),
		IdentityTimeoutSec:  positiveOr(v.GetInt("identity_timeout_seconds"), 10),

		ActionTimeoutSec:      positiveOr(v.GetInt("action_timeout_seconds"), 30),
		HealthProbeTimeoutSec: positiveOr(v.GetInt("health_probe_timeout_seconds"), 5),

		TurnRateLimitPerWindow: positiveOr(v.GetInt("turn_rate_limit_per_window"), 20),
		TurnRateLimitWindowSec: positiveOr(v.GetInt("turn_rate_limit_window_seconds"), 60),

		HealthSweepCron:        strings.TrimSpace(v.GetString("health_sweep_cron")),
		HealthSweepConcurrency: positiveOr(v.GetInt("health_sweep_concurrency"), 4),

		HeartbeatStaleSec: positiveOr(v.GetInt("heartbeat_stale_seconds"), 120),

		AdminAPIURL:         strings.TrimRight(strings.TrimSpace(v.GetString("admin_api_url")), "/"),
		AdminTLSSkipVerify:  v.GetBool("admin_tls_skip_verify"),
		AdminTLSCAFile:      strings.TrimSpace(v.GetString("admin_tls_ca_file")),
		AdminHTTPTimeoutSec: positiveOr(v.GetInt("admin_http_timeout_seconds"), 120),
	}
	return cfg, loadErr
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("data_dir", "/data")
	v.SetDefault("db_path", "")

	v.SetDefault("llm_provider", "openai")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("llm_max_tokens", 1024)
	v.SetDefault("llm_timeout_seconds", 60)

	v.SetDefault("default_system_prompt", "Eres el asistente técnico del proyecto. Responde en español, de forma breve y clara.")
	v.SetDefault("prompt_catalog_file", "")
	v.SetDefault("history_window", 20)

	v.SetDefault("vercel_api_base", "https://api.vercel.com")
	v.SetDefault("vercel_token", "")
	v.SetDefault("vercel_team_id", "")
	v.SetDefault("vercel_timeout_seconds", 15)

	v.SetDefault("identity_url", "")
	v.SetDefault("identity_service_key", "")
	v.SetDefault("identity_redirect_url", "")
	v.SetDefault("identity_timeout_seconds", 10)

	v.SetDefault("action_timeout_seconds", 30)
	v.SetDefault("health_probe_timeout_seconds", 5)

	v.SetDefault("turn_rate_limit_per_window", 20)
	v.SetDefault("turn_rate_limit_window_seconds", 60)

	v.SetDefault("health_sweep_cron", "")
	v.SetDefault("health_sweep_concurrency", 4)

	v.SetDefault("heartbeat_stale_seconds", 120)

	v.SetDefault("admin_api_url", "http://localhost:8080")
	v.SetDefault("admin_tls_skip_verify", false)
	v.SetDefault("admin_tls_ca_file", "")
	v.SetDefault("admin_http_timeout_seconds", 120)
}

func positiveOr(value, fallback int) int {
	if value < 1 {
		return fallback
	}
	return value
}

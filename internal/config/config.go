package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Persistence. Empty DATABASE_URL means in-memory only.
	DatabaseURL string `mapstructure:"database_url"`

	// Explanation provider: openai, anthropic, or ollama.
	LLMProvider     string `mapstructure:"llm_provider"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OllamaURL       string `mapstructure:"ollama_url"`

	// Learned decision policy. When disabled the rule-based policy runs.
	UseRLAgent  bool   `mapstructure:"use_rl_agent"`
	RLModelPath string `mapstructure:"rl_model_path"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	JSONLogs bool   `mapstructure:"json_logs"`

	// Orchestrator
	KubeconfigPath       string  `mapstructure:"kubeconfig_path"`
	OrchestratorTimeout  int     `mapstructure:"orchestrator_timeout_sec"` // outbound K8s call deadline
	K8sRateLimitPerSec   float64 `mapstructure:"k8s_rate_limit_per_sec"`   // token bucket rate; 0 = no limit
	K8sRateLimitBurst    int     `mapstructure:"k8s_rate_limit_burst"`

	// Server
	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"` // graceful shutdown wait
}

// Load reads configuration from an optional config file plus environment
// variables. The environment names (DATABASE_URL, LLM_PROVIDER, ...) match
// the deployment contract and take precedence over file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sentinelforge/")
	v.AddConfigPath("$HOME/.sentinelforge")
	v.AddConfigPath(".")

	// Defaults
	v.SetDefault("port", 8000)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("database_url", "")
	v.SetDefault("llm_provider", "")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("use_rl_agent", false)
	v.SetDefault("rl_model_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("json_logs", false)
	v.SetDefault("kubeconfig_path", "")
	v.SetDefault("orchestrator_timeout_sec", 5)
	v.SetDefault("k8s_rate_limit_per_sec", 0) // 0 = disabled
	v.SetDefault("k8s_rate_limit_burst", 0)
	v.SetDefault("request_timeout_sec", 30)
	v.SetDefault("shutdown_timeout_sec", 15)

	// Environment variables use their conventional flat names.
	bindings := map[string]string{
		"port":              "PORT",
		"database_url":      "DATABASE_URL",
		"llm_provider":      "LLM_PROVIDER",
		"openai_api_key":    "OPENAI_API_KEY",
		"anthropic_api_key": "ANTHROPIC_API_KEY",
		"ollama_url":        "OLLAMA_URL",
		"use_rl_agent":      "USE_RL_AGENT",
		"rl_model_path":     "RL_MODEL_PATH",
		"log_level":         "LOG_LEVEL",
		"json_logs":         "JSON_LOGS",
		"kubeconfig_path":   "KUBECONFIG",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

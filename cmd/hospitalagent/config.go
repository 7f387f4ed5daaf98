package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dileep-u-k/hospital-agent/internal/agent"
	"github.com/dileep-u-k/hospital-agent/internal/chains"
	"github.com/dileep-u-k/hospital-agent/internal/llm"
	"github.com/dileep-u-k/hospital-agent/internal/prompt"
)

const (
	defaultResponseCacheTTL    = 24 * time.Hour
	defaultHealthCheckInterval = 5 * time.Minute
	defaultPort                = "8000"
)

// AppConfig holds all configuration for the agent service, loaded from the
// environment and an optional config file.
type AppConfig struct {
	Model string
	Keys  llm.APIKeys

	RedisAddr string

	ReviewsURL   string
	CypherURL    string
	WaitTimesURL string

	PromptRegistry string
	PromptID       string

	MaxSteps    int
	StepTimeout time.Duration
	Verbose     bool

	ResponseCacheTTL    time.Duration
	WaitCacheTTL        time.Duration
	HealthCheckInterval time.Duration

	Port     string
	LogLevel slog.Level
}

// fileConfig is the shape of config.yaml. Environment variables win over it.
type fileConfig struct {
	Model          string `yaml:"model"`
	PromptRegistry string `yaml:"prompt_registry"`
	PromptID       string `yaml:"prompt_id"`
	Collaborators  struct {
		BaseURL      string `yaml:"base_url"`
		ReviewsURL   string `yaml:"reviews_url"`
		CypherURL    string `yaml:"cypher_url"`
		WaitTimesURL string `yaml:"wait_times_url"`
	} `yaml:"collaborators"`
	Agent struct {
		MaxSteps    int           `yaml:"max_steps"`
		StepTimeout time.Duration `yaml:"step_timeout"`
		Verbose     *bool         `yaml:"verbose"`
	} `yaml:"agent"`
	Cache struct {
		ResponseTTL time.Duration `yaml:"response_ttl"`
		WaitTTL     time.Duration `yaml:"wait_ttl"`
	} `yaml:"cache"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	Port                string        `yaml:"port"`
	LogLevel            string        `yaml:"log_level"`
}

// LoadConfig loads configuration from a .env file (outside release mode), an optional
// YAML file at path, and environment variables, in increasing order of precedence.
func LoadConfig(path string) (*AppConfig, error) {
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found for local development")
		}
	}

	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("config file not found, using environment only", "path", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	return buildConfig(fc, os.Getenv)
}

func buildConfig(fc fileConfig, getenv func(string) string) (*AppConfig, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	baseURL := env("CHAINS_BASE_URL", fc.Collaborators.BaseURL)
	cfg := &AppConfig{
		Model: env("HOSPITAL_AGENT_MODEL", fc.Model),
		Keys: llm.APIKeys{
			OpenAI:           getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:    getenv("OPENAI_API_BASE_URL"),
			Anthropic:        getenv("ANTHROPIC_API_KEY"),
			AnthropicBaseURL: getenv("ANTHROPIC_API_BASE_URL"),
			Gemini:           getenv("GEMINI_API_KEY"),
			Mistral:          getenv("MISTRAL_API_KEY"),
		},
		RedisAddr:           getenv("REDIS_ADDR"),
		ReviewsURL:          env("REVIEWS_CHAIN_URL", firstNonEmpty(fc.Collaborators.ReviewsURL, baseURL)),
		CypherURL:           env("CYPHER_CHAIN_URL", firstNonEmpty(fc.Collaborators.CypherURL, baseURL)),
		WaitTimesURL:        env("WAIT_TIMES_URL", firstNonEmpty(fc.Collaborators.WaitTimesURL, baseURL)),
		PromptRegistry:      env("PROMPT_REGISTRY", firstNonEmpty(fc.PromptRegistry, "builtin")),
		PromptID:            env("PROMPT_ID", firstNonEmpty(fc.PromptID, prompt.DefaultID)),
		MaxSteps:            fc.Agent.MaxSteps,
		StepTimeout:         fc.Agent.StepTimeout,
		Verbose:             true,
		ResponseCacheTTL:    fc.Cache.ResponseTTL,
		WaitCacheTTL:        fc.Cache.WaitTTL,
		HealthCheckInterval: fc.HealthCheckInterval,
		Port:                env("PORT", firstNonEmpty(fc.Port, defaultPort)),
	}
	if fc.Agent.Verbose != nil {
		cfg.Verbose = *fc.Agent.Verbose
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: HOSPITAL_AGENT_MODEL is not set", agent.ErrConfiguration)
	}

	if v := getenv("AGENT_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: AGENT_MAX_STEPS must be a positive integer, got %q", agent.ErrConfiguration, v)
		}
		cfg.MaxSteps = n
	}
	if v := getenv("AGENT_STEP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: AGENT_STEP_TIMEOUT must be a positive duration, got %q", agent.ErrConfiguration, v)
		}
		cfg.StepTimeout = d
	}
	if v := getenv("AGENT_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: AGENT_VERBOSE must be a boolean, got %q", agent.ErrConfiguration, v)
		}
		cfg.Verbose = b
	}

	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = agent.DefaultMaxSteps
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = agent.DefaultStepTimeout
	}
	if cfg.ResponseCacheTTL <= 0 {
		cfg.ResponseCacheTTL = defaultResponseCacheTTL
	}
	if cfg.WaitCacheTTL <= 0 {
		cfg.WaitCacheTTL = chains.DefaultWaitCacheTTL
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}

	level := env("LOG_LEVEL", firstNonEmpty(fc.LogLevel, "info"))
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: invalid LOG_LEVEL %q", agent.ErrConfiguration, level)
	}
	return cfg, nil
}

// validateCollaborators is checked only by commands that build the tools.
func (c *AppConfig) validateCollaborators() error {
	var missing []string
	if c.ReviewsURL == "" {
		missing = append(missing, "REVIEWS_CHAIN_URL")
	}
	if c.CypherURL == "" {
		missing = append(missing, "CYPHER_CHAIN_URL")
	}
	if c.WaitTimesURL == "" {
		missing = append(missing, "WAIT_TIMES_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set CHAINS_BASE_URL or %s", agent.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

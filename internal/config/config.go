package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DBPath      string `envconfig:"DB_PATH" default:"assistant.db"`

	// Model (required for chat; the service starts without it, session start fails)
	AnthropicAPIKey  string        `envconfig:"ANTHROPIC_API_KEY"`
	Model            string        `envconfig:"MODEL" default:"claude-sonnet-4-5"`
	ModelMaxTokens   int           `envconfig:"MODEL_MAX_TOKENS" default:"2048"`
	ModelTimeout     time.Duration `envconfig:"MODEL_TIMEOUT" default:"60s"`
	SummaryMaxTokens int           `envconfig:"SUMMARY_MAX_TOKENS" default:"512"`

	// Calendar API
	CalendarBaseURL string        `envconfig:"CALENDAR_BASE_URL" default:"https://www.googleapis.com/calendar/v3"`
	CalendarTimeout time.Duration `envconfig:"CALENDAR_TIMEOUT" default:"30s"`

	// HTTP gateway
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	CORSOrigins     string        `envconfig:"CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Prompt templates (optional YAML override; embedded defaults otherwise)
	PromptsPath string `envconfig:"PROMPTS_PATH"`
}

// ModelConfigured returns true if model credentials are configured.
func (c *Config) ModelConfigured() bool {
	return c.AnthropicAPIKey != ""
}

// AuthEnabled returns true if the HTTP gateway should verify bearer tokens.
// Without a secret the gateway runs in trusted mode (local development).
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("assistant", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// TokenParameter is the SSM parameter, relative to ParamPrefix, holding the
// Mistral API token as {"token": "..."}.
const TokenParameter = "mistral-api-token"

type Config struct {
	// Provider
	MistralAPIKey     string        `env:"MISTRAL_API_KEY"`
	ParamPrefix       string        `env:"PARAM_PREFIX"`
	Model             string        `env:"MISTRAL_MODEL" envDefault:"pixtral-12b-2409"`
	BaseURL           string        `env:"MISTRAL_BASE_URL" envDefault:"https://api.mistral.ai/v1"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"30s"`

	// Storage
	StateTable string `env:"STATE_TABLE"`
	DataDir    string `env:"DATA_DIR" envDefault:"user_data"`

	// Personas
	PersonaFile string `env:"PERSONA_FILE"`

	// Server
	Addr           string `env:"ADDR" envDefault:":8080"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.MistralAPIKey) == "" && strings.TrimSpace(c.ParamPrefix) == "" {
		return errors.New("config: one of MISTRAL_API_KEY or PARAM_PREFIX is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("config: MISTRAL_MODEL must not be empty")
	}
	if c.CompletionTimeout <= 0 {
		return errors.New("config: COMPLETION_TIMEOUT must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// KeyFromParamStore reports whether the API key must be fetched from SSM.
func (c *Config) KeyFromParamStore() bool {
	return strings.TrimSpace(c.MistralAPIKey) == ""
}

// RequireStateTable is checked by deployments that keep state in DynamoDB.
func (c *Config) RequireStateTable() error {
	if strings.TrimSpace(c.StateTable) == "" {
		return errors.New("config: STATE_TABLE is required")
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

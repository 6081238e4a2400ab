// Package config loads the validation service configuration from a JSON
// file plus SIGNEDDOC_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the validation service configuration.
type Config struct {
	ListenAddr  string `koanf:"listen_addr" validate:"required,hostname_port"`
	DatabaseURL string `koanf:"database_url" validate:"required"`
	// Network restricts accepted key IDs to one deployment network.
	Network string `koanf:"network" validate:"required"`
	// CountingMode selects the submission aggregation mode.
	CountingMode string `koanf:"counting_mode" validate:"omitempty,oneof=final-signers all-collaborators"`
	// RequireAuth guards the key registration endpoint with bearer tokens.
	RequireAuth bool `koanf:"require_auth"`

	RetryAttempts int           `koanf:"retry_attempts" validate:"min=0,max=10"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`

	// Version timestamp drift thresholds. Zero disables a bound.
	FutureThreshold time.Duration `koanf:"future_threshold"`
	PastThreshold   time.Duration `koanf:"past_threshold"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"listen_addr":      "0.0.0.0:8085",
		"network":          "preprod",
		"counting_mode":    "final-signers",
		"require_auth":     false,
		"retry_attempts":   3,
		"retry_backoff":    200 * time.Millisecond,
		"future_threshold": 5 * time.Minute,
		"past_threshold":   0 * time.Second,
	}
}

// Load reads configuration with priority: environment variables > config
// file > defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		k.Set(key, value)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), json.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("SIGNEDDOC_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envTransform maps SIGNEDDOC_LISTEN_ADDR to listen_addr.
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "SIGNEDDOC_"))
}

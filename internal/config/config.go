// Package config provides configuration management for the conversation handler.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cchalm/guarded-chat/internal/inference"
)

// Inference backends
const (
	BackendBedrock   = "bedrock"
	BackendAnthropic = "anthropic"
	BackendLorem     = "lorem"
)

// Config holds the configuration for the handler
type Config struct {
	// Model access
	Region             string
	Backend            string
	AnthropicAPIKey    string
	AnthropicMaxTokens int64

	// Safety filtering. Guardrails are disabled when GuardrailID is empty.
	GuardrailID      string
	GuardrailVersion string

	LogLevel string

	// Telemetry config
	TelemetryEnabled bool
	OTLPEndpoint     string
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Region:             "eu-central-1",
		Backend:            BackendBedrock,
		AnthropicMaxTokens: 4096,
		GuardrailVersion:   "DRAFT",
		LogLevel:           "info",
	}

	loadOptionalFromEnv(&config.Region, "AWS_REGION")
	loadOptionalFromEnv(&config.Backend, "INFERENCE_BACKEND")
	loadOptionalFromEnv(&config.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	loadOptionalFromEnv(&config.GuardrailID, "GUARDRAIL_ID")
	loadOptionalFromEnv(&config.GuardrailVersion, "GUARDRAIL_VERSION")
	loadOptionalFromEnv(&config.LogLevel, "LOG_LEVEL")
	loadOptionalFromEnv(&config.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	parseInt := func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) }
	if err := parseOptionalFromEnv(&config.AnthropicMaxTokens, "ANTHROPIC_MAX_TOKENS", parseInt); err != nil {
		return Config{}, err
	}
	if err := parseOptionalFromEnv(&config.TelemetryEnabled, "TELEMETRY_ENABLED", strconv.ParseBool); err != nil {
		return Config{}, err
	}

	config.Backend = strings.ToLower(config.Backend)
	return config, nil
}

// Validate checks if the required configuration is present
func (c Config) Validate() error {
	switch c.Backend {
	case BackendBedrock:
		if c.Region == "" {
			return fmt.Errorf("missing required environment variable: AWS_REGION")
		}
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("missing required environment variable: ANTHROPIC_API_KEY")
		}
		if c.AnthropicMaxTokens <= 0 {
			return fmt.Errorf("ANTHROPIC_MAX_TOKENS must be positive, got %d", c.AnthropicMaxTokens)
		}
	case BackendLorem:
	default:
		return fmt.Errorf("unknown inference backend '%s', expected one of %s, %s, %s", c.Backend, BackendBedrock, BackendAnthropic, BackendLorem)
	}
	if c.TelemetryEnabled && c.OTLPEndpoint == "" {
		return fmt.Errorf("missing required environment variable: OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return nil
}

// Guardrail returns the configured guardrail, or nil if none is configured
func (c Config) Guardrail() *inference.Guardrail {
	return inference.NewGuardrail(c.GuardrailID, c.GuardrailVersion)
}

func loadOptionalFromEnv(dest *string, key string) {
	_ = parseOptionalFromEnv(dest, key, func(v string) (string, error) { return v, nil })
}

func parseOptionalFromEnv[T any](dest *T, key string, parseFn func(string) (T, error)) error {
	str := os.Getenv(key)
	if str == "" {
		return nil // Leave default value
	}
	v, err := parseFn(str)
	if err != nil {
		return fmt.Errorf("failed to parse environment variable '%s' value '%s' as '%T': %w", key, str, *dest, err)
	}
	*dest = v
	return nil
}

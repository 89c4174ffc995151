// Package config loads the server configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/splitchat/internal/gemini"
	"github.com/mmynk/splitchat/internal/pipeline"
)

var (
	ErrMissingAPIKey = errors.New("API key not configured (set GEMINI_API_KEY)")
	ErrInvalidPort   = errors.New("port must be between 1 and 65535")
	ErrInvalidLevel  = errors.New("unknown log level")
	ErrInvalidFormat = errors.New("log format must be text or json")
)

// Config is the complete server configuration.
type Config struct {
	Port    int           `yaml:"port"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Logging LoggingConfig `yaml:"logging"`

	// Timeout bounds each round trip to Gemini.
	Timeout time.Duration `yaml:"timeout"`
}

// GeminiConfig selects the models and holds the credential.
type GeminiConfig struct {
	APIKey      string `yaml:"api_key"`
	ChatModel   string `yaml:"chat_model"`
	VisionModel string `yaml:"vision_model"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Port: 8080,
		Gemini: GeminiConfig{
			ChatModel:   gemini.DefaultChatModel,
			VisionModel: gemini.DefaultVisionModel,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Timeout: pipeline.DefaultTimeout,
	}
}

// Load reads the YAML file at path, if any, and applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if model := os.Getenv("SPLITCHAT_CHAT_MODEL"); model != "" {
		c.Gemini.ChatModel = model
	}
	if model := os.Getenv("SPLITCHAT_VISION_MODEL"); model != "" {
		c.Gemini.VisionModel = model
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := os.Getenv("SPLITCHAT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SPLITCHAT_TIMEOUT %q: %w", v, err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks the settings the server cannot start without. A missing
// API key is reported separately by CheckCredentials since the server still
// runs without one.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLevel, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, c.Logging.Format)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// CheckCredentials reports ErrMissingAPIKey when no Gemini key is set.
func (c *Config) CheckCredentials() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Addr is the listen address for the configured port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

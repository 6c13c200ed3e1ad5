// Package config provides configuration management for reprompt.
// It covers the completion API settings, transformation behaviour, example
// generation defaults, the workspace being served, the local HTTP service,
// the circuit breaker guarding the API, and logging.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete reprompt configuration.
type Config struct {
	Sonar          SonarConfig          `yaml:"sonar"`
	Transform      TransformConfig      `yaml:"transform"`
	Examples       ExamplesConfig       `yaml:"examples"`
	Workspace      WorkspaceConfig      `yaml:"workspace"`
	Server         ServerConfig         `yaml:"server"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// SonarConfig holds the completion API settings.
type SonarConfig struct {
	// APIKey authenticates against the completion API.
	// Use environment variables (e.g., ${PERPLEXITY_API_KEY}) for secure configuration
	APIKey string `yaml:"api_key"`

	// BaseURL is the API root; requests go to {BaseURL}/chat/completions
	BaseURL string `yaml:"base_url"`

	// Model is the preferred model (default: sonar)
	Model string `yaml:"model"`

	// SearchContextSize controls how much web context backs a completion:
	// low, medium or high (default: medium)
	SearchContextSize string `yaml:"search_context_size"`

	// SearchDomainFilter optionally restricts web search to these domains
	SearchDomainFilter []string `yaml:"search_domain_filter,omitempty"`

	// Timeout bounds every completion call (default: 60s)
	Timeout time.Duration `yaml:"timeout"`
}

// ExamplesConfig controls the "generate examples" operation.
type ExamplesConfig struct {
	// DefaultCount is the number of examples generated when none is given (default: 3)
	DefaultCount int `yaml:"default_count"`

	// AskEachTime makes the CLI prompt for the count on every run
	AskEachTime bool `yaml:"ask_each_time"`
}

// WorkspaceConfig describes the project the assistant works in.
type WorkspaceConfig struct {
	// Root is the project root scanned for stack markers and house rules
	Root string `yaml:"root"`

	// WatchRules reloads house rules when a rules file changes under Root
	WatchRules bool `yaml:"watch_rules"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
// It defines timeouts, limits, and operational parameters.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8787)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// It must leave room for a full completion call (default: 90s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RequestTimeout bounds a single API request handled by the server (default: 75s)
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxPromptTokens rejects prompts longer than this many tokens; 0 disables the check
	MaxPromptTokens int `yaml:"max_prompt_tokens"`

	// APIKeys, when non-empty, must contain the X-API-Key sent by clients
	APIKeys []string `yaml:"api_keys,omitempty"`

	// RateLimit configures the per-client limiter
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the token bucket applied per client IP.
type RateLimitConfig struct {
	// Enabled turns rate limiting on/off
	Enabled bool `yaml:"enabled"`

	// Requests is the burst size allowed per Window
	Requests int `yaml:"requests"`

	// Window is the refill period for a single request
	Window time.Duration `yaml:"window"`
}

// CircuitBreakerConfig controls the breaker wrapped around the completion API.
type CircuitBreakerConfig struct {
	// Enabled turns the breaker on/off
	Enabled bool `yaml:"enabled"`

	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Sonar: SonarConfig{
			APIKey:            "",
			BaseURL:           "https://api.perplexity.ai",
			Model:             "sonar",
			SearchContextSize: "medium",
			Timeout:           60 * time.Second,
		},
		Transform: TransformConfig{
			InferStack:    true,
			ShowStats:     true,
			ProgressTheme: "random",
			CountTokens:   false,
		},
		Examples: ExamplesConfig{
			DefaultCount: 3,
			AskEachTime:  false,
		},
		Workspace: WorkspaceConfig{
			Root:       ".",
			WatchRules: true,
		},
		Server: ServerConfig{
			Port:            8787,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			RequestTimeout:  75 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			MaxPromptTokens: 0,
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 10,
				Window:   time.Minute,
			},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves environment variables within configuration text.
// It supports ${VAR} and ${VAR:-default}; the default applies when VAR is
// unset or empty. A reference left unterminated is reported as an error.
//
// Example Transformations:
//   - "${PERPLEXITY_API_KEY}" → "pplx-..."
//   - "${REPROMPT_PORT:-8787}" → "8787" (if REPROMPT_PORT is unset)
func expandEnvVars(s string) (string, error) {
	if i := strings.LastIndex(s, "${"); i >= 0 && !strings.Contains(s[i:], "}") {
		return "", fmt.Errorf("invalid syntax: unterminated variable reference at offset %d", i)
	}

	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			envKey := key[:i]
			defaultValue := key[i+2:]

			if val := os.Getenv(envKey); val != "" {
				return val
			}
			return defaultValue
		}

		return os.Getenv(key)
	})

	return result, nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	// Decode YAML on top of defaults; an empty document keeps the defaults
	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Sonar validation
	if c.Sonar.BaseURL == "" {
		return fmt.Errorf("empty sonar base url")
	}
	if !strings.HasPrefix(c.Sonar.BaseURL, "http://") && !strings.HasPrefix(c.Sonar.BaseURL, "https://") {
		return fmt.Errorf("invalid sonar base url: %s", c.Sonar.BaseURL)
	}
	if c.Sonar.Model == "" {
		return fmt.Errorf("empty sonar model")
	}
	switch c.Sonar.SearchContextSize {
	case "low", "medium", "high":
		// Valid sizes
	default:
		return fmt.Errorf("invalid search context size: %s", c.Sonar.SearchContextSize)
	}
	if c.Sonar.Timeout <= 0 {
		return fmt.Errorf("non-positive sonar timeout: %v", c.Sonar.Timeout)
	}

	// Transform validation
	if err := c.Transform.Validate(); err != nil {
		return err
	}

	// Examples validation
	if c.Examples.DefaultCount < 1 || c.Examples.DefaultCount > 10 {
		return fmt.Errorf("invalid default example count: %d (must be between 1 and 10)", c.Examples.DefaultCount)
	}

	// Workspace validation
	if c.Workspace.Root == "" {
		return fmt.Errorf("empty workspace root")
	}

	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("negative request timeout: %v", c.Server.RequestTimeout)
	}
	if c.Server.RequestTimeout > 0 && c.Server.RequestTimeout <= c.Sonar.Timeout {
		return fmt.Errorf("request timeout %v must exceed sonar timeout %v", c.Server.RequestTimeout, c.Sonar.Timeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}
	if c.Server.MaxPromptTokens < 0 {
		return fmt.Errorf("negative max prompt tokens: %d", c.Server.MaxPromptTokens)
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.Requests <= 0 {
			return fmt.Errorf("invalid rate limit requests: %d", c.Server.RateLimit.Requests)
		}
		if c.Server.RateLimit.Window <= 0 {
			return fmt.Errorf("invalid rate limit window: %v", c.Server.RateLimit.Window)
		}
	}

	// Circuit breaker validation
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold == 0 {
			return fmt.Errorf("circuit breaker failure threshold must be positive")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return fmt.Errorf("non-positive circuit breaker timeout: %v", c.CircuitBreaker.Timeout)
		}
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// RequireAPIKey returns an error when no API key is configured. Operations
// that call the completion API check this before doing any other work.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Sonar.APIKey) == "" {
		return fmt.Errorf("set sonar.api_key in the configuration or PERPLEXITY_API_KEY in the environment")
	}
	return nil
}

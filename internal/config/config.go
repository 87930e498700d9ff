// ABOUTME: Configuration loading and parsing for assistant-relay
// ABOUTME: Supports YAML or TOML files with environment variable expansion, .env files and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied to unset fields.
const (
	DefaultHTTPAddr        = "0.0.0.0:8080"
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultSessionTimeout  = 5 * time.Minute
	DefaultMaxEvents       = 1000
	DefaultMaxThreads      = 10_000
	DefaultMaxProfiles     = 10_000
	DefaultSlackAPIURL     = "https://slack.com/api"
	DefaultAssistantVer    = "2020-04-01"
	DefaultMetricsPath     = "/metrics"
	DefaultServiceName     = "assistant-relay"
)

// Mode is the assistant backend strategy.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeProxy  Mode = "proxy"
)

// Config represents the complete assistant-relay configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Slack     SlackConfig     `yaml:"slack" toml:"slack"`
	Assistant AssistantConfig `yaml:"assistant" toml:"assistant"`
	Proxy     ProxyConfig     `yaml:"proxy" toml:"proxy"`
	Sessions  SessionsConfig  `yaml:"sessions" toml:"sessions"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ServerConfig holds the listener and outbound call settings
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// UpstreamTimeout bounds every outbound HTTP call
	UpstreamTimeout    time.Duration `yaml:"-" toml:"-"`
	UpstreamTimeoutRaw string        `yaml:"upstream_timeout" toml:"upstream_timeout"`
}

// SlackConfig holds Slack app credentials and posting limits
type SlackConfig struct {
	BotToken string `yaml:"bot_token" toml:"bot_token"`

	// WebhookSecret is the verification token carried in every event body
	WebhookSecret string `yaml:"webhook_secret" toml:"webhook_secret"`

	// SigningSecret enables X-Slack-Signature checks when set
	SigningSecret string `yaml:"signing_secret" toml:"signing_secret"`

	// BotID is resolved with auth.test when empty
	BotID   string `yaml:"bot_id" toml:"bot_id"`
	BotName string `yaml:"bot_name" toml:"bot_name"`
	APIURL  string `yaml:"api_url" toml:"api_url"`

	// PostRate is messages per second; zero disables pacing
	PostRate  float64 `yaml:"post_rate" toml:"post_rate"`
	PostBurst int     `yaml:"post_burst" toml:"post_burst"`
}

// AssistantConfig holds direct assistant service credentials
type AssistantConfig struct {
	URL         string `yaml:"url" toml:"url"`
	Version     string `yaml:"version" toml:"version"`
	APIKey      string `yaml:"api_key" toml:"api_key"`
	AssistantID string `yaml:"assistant_id" toml:"assistant_id"`
	OptOut      bool   `yaml:"opt_out" toml:"opt_out"`
}

// ProxyConfig holds the assistant proxy endpoint
type ProxyConfig struct {
	URL           string `yaml:"url" toml:"url"`
	IntegrationID string `yaml:"integration_id" toml:"integration_id"`
}

// SessionsConfig holds session lifetime settings
type SessionsConfig struct {
	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`

	// MaxTurns caps stored history; zero keeps everything
	MaxTurns int `yaml:"max_turns" toml:"max_turns"`
}

// CacheConfig bounds the in-memory caches
type CacheConfig struct {
	MaxEvents int `yaml:"max_events" toml:"max_events"`

	// EventTTL expires dedupe entries; zero keeps them until evicted
	EventTTL    time.Duration `yaml:"-" toml:"-"`
	EventTTLRaw string        `yaml:"event_ttl" toml:"event_ttl"`

	MaxThreads  int `yaml:"max_threads" toml:"max_threads"`
	MaxProfiles int `yaml:"max_profiles" toml:"max_profiles"`
}

// DatabaseConfig holds the transcript ledger location. An empty path disables it.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds admin API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// Path returns the config file location.
// Priority: RELAY_CONFIG env var > XDG_CONFIG_HOME/assistant-relay/relay.yaml > ~/.config/assistant-relay/relay.yaml
func Path() string {
	if envPath := os.Getenv("RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "assistant-relay", "relay.yaml")
}

// LoadEnvFile loads variables from a .env file without overriding the
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(string(data), strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, defaults and validates configuration text.
func Parse(text string, isTOML bool) (*Config, error) {
	expanded := expandEnvVars(text)

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.UpstreamTimeout == 0 {
		c.Server.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if c.Slack.APIURL == "" {
		c.Slack.APIURL = DefaultSlackAPIURL
	}
	if c.Assistant.Version == "" {
		c.Assistant.Version = DefaultAssistantVer
	}
	if c.Sessions.Timeout == 0 {
		c.Sessions.Timeout = DefaultSessionTimeout
	}
	if c.Cache.MaxEvents == 0 {
		c.Cache.MaxEvents = DefaultMaxEvents
	}
	if c.Cache.MaxThreads == 0 {
		c.Cache.MaxThreads = DefaultMaxThreads
	}
	if c.Cache.MaxProfiles == 0 {
		c.Cache.MaxProfiles = DefaultMaxProfiles
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}

// Mode reports which assistant backend the configuration selects.
// It is only meaningful after Validate succeeds.
func (c *Config) Mode() Mode {
	if c.Proxy.IntegrationID != "" {
		return ModeProxy
	}
	return ModeDirect
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if c.Slack.WebhookSecret == "" {
		return fmt.Errorf("slack.webhook_secret is required")
	}
	if c.Slack.PostRate < 0 || c.Slack.PostBurst < 0 {
		return fmt.Errorf("slack.post_rate and slack.post_burst must not be negative")
	}

	direct := c.Assistant.APIKey != "" || c.Assistant.AssistantID != ""
	proxy := c.Proxy.IntegrationID != ""
	switch {
	case direct && proxy:
		return fmt.Errorf("configure either assistant credentials or proxy.integration_id, not both")
	case !direct && !proxy:
		return fmt.Errorf("no assistant backend: set assistant.api_key and assistant.assistant_id, or proxy.integration_id")
	case direct:
		if c.Assistant.APIKey == "" || c.Assistant.AssistantID == "" {
			return fmt.Errorf("assistant.api_key and assistant.assistant_id are both required")
		}
		if c.Assistant.URL == "" {
			return fmt.Errorf("assistant.url is required")
		}
	case proxy:
		if c.Proxy.URL == "" {
			return fmt.Errorf("proxy.url is required when proxy.integration_id is set")
		}
	}

	if c.Sessions.Timeout < 0 {
		return fmt.Errorf("sessions.timeout must be positive")
	}
	if c.Sessions.MaxTurns < 0 {
		return fmt.Errorf("sessions.max_turns must not be negative")
	}
	if c.Cache.MaxEvents < 0 || c.Cache.MaxThreads < 0 || c.Cache.MaxProfiles < 0 {
		return fmt.Errorf("cache sizes must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.upstream_timeout", cfg.Server.UpstreamTimeoutRaw, &cfg.Server.UpstreamTimeout},
		{"sessions.timeout", cfg.Sessions.TimeoutRaw, &cfg.Sessions.Timeout},
		{"cache.event_ttl", cfg.Cache.EventTTLRaw, &cfg.Cache.EventTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

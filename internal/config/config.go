// ABOUTME: Configuration loading and parsing for lantern-server
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete lantern-server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Notify    NotifyConfig    `yaml:"notify"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP bind address and the externally reachable URL.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the external URL used in session links and file-retrieval
	// links. If not set, it is derived from http_addr or the tailscale
	// hostname.
	BaseURL string `yaml:"base_url"`
}

// StorageConfig holds the snapshot file and upload directory paths.
type StorageConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
	UploadDir    string `yaml:"upload_dir"`
}

// NotifyConfig selects and configures the outbound messaging backend.
// An empty backend cleanly disables notifications.
type NotifyConfig struct {
	Backend  string         `yaml:"backend"` // "", "telegram", or "matrix"
	Telegram TelegramConfig `yaml:"telegram"`
	Matrix   MatrixConfig   `yaml:"matrix"`
}

// TelegramConfig holds Telegram Bot API credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

// MatrixConfig holds Matrix client credentials.
type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

// TailscaleConfig holds Tailscale tsnet configuration.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // serve TLS with Tailscale certs
	Funnel    bool   `yaml:"funnel"` // enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in storage paths so a minimal config still works.
func (c *Config) applyDefaults() {
	if c.Storage.SnapshotPath == "" {
		c.Storage.SnapshotPath = "sessions.json"
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "uploads"
	}
}

// Validate checks that all required configuration fields are present and
// consistent. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Notify.Backend {
	case "", "none":
	case "telegram":
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required for the telegram backend")
		}
	case "matrix":
		if c.Notify.Matrix.Homeserver == "" {
			return fmt.Errorf("notify.matrix.homeserver is required for the matrix backend")
		}
		if c.Notify.Matrix.UserID == "" {
			return fmt.Errorf("notify.matrix.user_id is required for the matrix backend")
		}
		if c.Notify.Matrix.AccessToken == "" {
			return fmt.Errorf("notify.matrix.access_token is required for the matrix backend")
		}
	default:
		return fmt.Errorf("notify.backend must be empty, telegram, or matrix (got %q)", c.Notify.Backend)
	}

	return nil
}

// ResolveBaseURL returns the external URL for session and file links:
// explicit config first, then the LANTERN_BASE_URL environment variable,
// then a URL derived from the deployment mode.
func (c *Config) ResolveBaseURL() string {
	if c.Server.BaseURL != "" {
		return c.Server.BaseURL
	}
	if envURL := os.Getenv("LANTERN_BASE_URL"); envURL != "" {
		return envURL
	}
	if c.Tailscale.Enabled {
		if c.Tailscale.HTTPS || c.Tailscale.Funnel {
			return "https://" + c.Tailscale.Hostname
		}
		return "http://" + c.Tailscale.Hostname
	}
	return "http://" + c.Server.HTTPAddr
}

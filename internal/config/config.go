// ABOUTME: Configuration loading and parsing for the kbchat clients
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding setting is absent.
const (
	DefaultBaseURL            = "http://localhost:8000"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultRevalidateInterval = 30 * time.Minute
	DefaultCookieMaxAge       = 30 * time.Minute
	DefaultPollInterval       = time.Second
	DefaultNotifyTTL          = 5 * time.Second
)

// Chat transport modes
const (
	ChatModeStream = "stream"
	ChatModeHTTP   = "http"
)

// Config represents the complete kbchat configuration
type Config struct {
	API       APIConfig       `yaml:"api" toml:"api"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Chat      ChatConfig      `yaml:"chat" toml:"chat"`
	Documents DocumentsConfig `yaml:"documents" toml:"documents"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Notify    NotifyConfig    `yaml:"notify" toml:"notify"`
}

// APIConfig holds the backend API location
type APIConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// AuthConfig holds session timing configuration
type AuthConfig struct {
	RevalidateInterval time.Duration `yaml:"-" toml:"-"`
	CookieMaxAge       time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	RevalidateIntervalRaw string `yaml:"revalidate_interval" toml:"revalidate_interval"`
	CookieMaxAgeRaw       string `yaml:"cookie_max_age" toml:"cookie_max_age"`
}

// StoreMemory as store.path keeps the session for the life of the process.
const StoreMemory = ":memory:"

// StoreConfig holds the credential jar location
type StoreConfig struct {
	// Path to the SQLite cookie jar. Defaults to session.db in DataPath().
	Path string `yaml:"path" toml:"path"`
}

// ChatConfig selects the chat transport
type ChatConfig struct {
	Mode string `yaml:"mode" toml:"mode"` // stream, http
}

// DocumentsConfig holds document upload and polling settings
type DocumentsConfig struct {
	PollInterval      time.Duration `yaml:"-" toml:"-"`
	PollIntervalRaw   string        `yaml:"poll_interval" toml:"poll_interval"`
	AllowedExtensions []string      `yaml:"allowed_extensions" toml:"allowed_extensions"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	// File enables a rotating log file in addition to stderr
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// TelemetryConfig holds OpenTelemetry exporter configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// NotifyConfig holds toast suppression settings
type NotifyConfig struct {
	DedupeTTL    time.Duration `yaml:"-" toml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads the file at path when it exists and otherwise returns
// defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv lets KBCHAT_API_URL override the configured base URL.
func (c *Config) applyEnv() {
	if v := os.Getenv("KBCHAT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultRequestTimeout
	}
	if cfg.Auth.RevalidateInterval == 0 {
		cfg.Auth.RevalidateInterval = DefaultRevalidateInterval
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = DefaultCookieMaxAge
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(DataPath(), "session.db")
	}
	if cfg.Chat.Mode == "" {
		cfg.Chat.Mode = ChatModeStream
	}
	if cfg.Documents.PollInterval == 0 {
		cfg.Documents.PollInterval = DefaultPollInterval
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "kbchat"
	}
	if cfg.Notify.DedupeTTL == 0 {
		cfg.Notify.DedupeTTL = DefaultNotifyTTL
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url must include a host")
	}

	switch c.Chat.Mode {
	case ChatModeStream, ChatModeHTTP:
	default:
		return fmt.Errorf("chat.mode must be %q or %q, got %q", ChatModeStream, ChatModeHTTP, c.Chat.Mode)
	}

	if c.Auth.RevalidateInterval < 0 {
		return fmt.Errorf("auth.revalidate_interval must be positive")
	}
	if c.Documents.PollInterval < 0 {
		return fmt.Errorf("documents.poll_interval must be positive")
	}

	for _, ext := range c.Documents.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("documents.allowed_extensions entry %q must start with a dot", ext)
		}
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
		{"api.timeout", cfg.API.TimeoutRaw, &cfg.API.Timeout},
		{"auth.revalidate_interval", cfg.Auth.RevalidateIntervalRaw, &cfg.Auth.RevalidateInterval},
		{"auth.cookie_max_age", cfg.Auth.CookieMaxAgeRaw, &cfg.Auth.CookieMaxAge},
		{"documents.poll_interval", cfg.Documents.PollIntervalRaw, &cfg.Documents.PollInterval},
		{"notify.dedupe_ttl", cfg.Notify.DedupeTTLRaw, &cfg.Notify.DedupeTTL},
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

// Path returns the path to the kbchat config file.
// Priority: KBCHAT_CONFIG env var > XDG_CONFIG_HOME/kbchat/config.yaml > ~/.config/kbchat/config.yaml
func Path() string {
	if envPath := os.Getenv("KBCHAT_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(configDir(), "kbchat", "config.yaml")
}

// DataPath returns the kbchat data directory.
// Priority: XDG_DATA_HOME/kbchat > ~/.local/share/kbchat
func DataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "kbchat")
}

func configDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(homeDir, ".config")
	}
	return dir
}

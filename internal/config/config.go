package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "PRINTDESK_"

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Webhooks      WebhooksConfig      `yaml:"webhooks"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Mode            string        `yaml:"mode"`
}

type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type AuthConfig struct {
	// JWTSecret may be left empty; a generated secret is then persisted in
	// the settings table.
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenDuration  time.Duration `yaml:"token_duration"`
	AdminUsernames []string      `yaml:"admin_usernames"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
	SecureCookie   bool          `yaml:"secure_cookie"`
}

type NotificationsConfig struct {
	RecentLimit    int           `yaml:"recent_limit"`
	SendBuffer     int           `yaml:"send_buffer"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type WebhooksConfig struct {
	RetryCount  int              `yaml:"retry_count"`
	RetryDelay  time.Duration    `yaml:"retry_delay"`
	Timeout     time.Duration    `yaml:"timeout"`
	WorkerCount int              `yaml:"worker_count"`
	QueueSize   int              `yaml:"queue_size"`
	Endpoints   []EndpointConfig `yaml:"endpoints"`
}

type EndpointConfig struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Secret string   `yaml:"secret"`
	Events []string `yaml:"events"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Mode:            "release",
		},
		Database: DatabaseConfig{
			Path:         "./data/printdesk.db",
			BusyTimeout:  5 * time.Second,
			QueryTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenDuration: 24 * time.Hour,
			BcryptCost:    12,
		},
		Notifications: NotificationsConfig{
			RecentLimit:  5,
			SendBuffer:   16,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Webhooks: WebhooksConfig{
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 3,
			QueueSize:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads the YAML file at configPath over the defaults and applies
// PRINTDESK_* environment overrides. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
		return nil
	}

	if err := num("PORT", &cfg.Server.Port); err != nil {
		return err
	}
	str("SERVER_MODE", &cfg.Server.Mode)
	str("DB_PATH", &cfg.Database.Path)
	if err := dur("DB_QUERY_TIMEOUT", &cfg.Database.QueryTimeout); err != nil {
		return err
	}
	if err := dur("DB_BUSY_TIMEOUT", &cfg.Database.BusyTimeout); err != nil {
		return err
	}
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	if err := dur("TOKEN_DURATION", &cfg.Auth.TokenDuration); err != nil {
		return err
	}
	if v, ok := lookup(envPrefix + "ADMIN_USERNAMES"); ok && v != "" {
		cfg.Auth.AdminUsernames = splitList(v)
	}
	if v, ok := lookup(envPrefix + "WS_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.Notifications.AllowedOrigins = splitList(v)
	}
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsAdmin reports whether username is listed in auth.admin_usernames.
func (c *AuthConfig) IsAdmin(username string) bool {
	for _, u := range c.AdminUsernames {
		if u == username {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	validModes := map[string]bool{
		"debug":   true,
		"release": true,
		"test":    true,
	}

	if !validModes[c.Server.Mode] {
		return fmt.Errorf("invalid server mode: %s (valid: debug, release, test)", c.Server.Mode)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database query timeout must be positive")
	}

	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database busy timeout must be non-negative")
	}

	if c.Auth.TokenDuration <= 0 {
		return fmt.Errorf("auth token duration must be positive")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}

	if c.Notifications.RecentLimit < 1 {
		return fmt.Errorf("notifications recent limit must be at least 1")
	}

	if c.Notifications.SendBuffer < 1 {
		return fmt.Errorf("notifications send buffer must be at least 1")
	}

	if c.Notifications.PingInterval <= 0 || c.Notifications.WriteTimeout <= 0 {
		return fmt.Errorf("notifications ping interval and write timeout must be positive")
	}

	if c.Webhooks.RetryCount < 0 {
		return fmt.Errorf("webhook retry count must be non-negative")
	}

	if c.Webhooks.WorkerCount < 1 {
		return fmt.Errorf("webhook worker count must be at least 1")
	}

	if c.Webhooks.QueueSize < 1 {
		return fmt.Errorf("webhook queue size must be at least 1")
	}

	for i, ep := range c.Webhooks.Endpoints {
		u, err := url.Parse(ep.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook endpoint %d (%s): url must be absolute http(s), got %q", i, ep.Name, ep.URL)
		}
		if len(ep.Events) == 0 {
			return fmt.Errorf("webhook endpoint %d (%s): at least one event is required", i, ep.Name)
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

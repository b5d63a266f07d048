// Package config provides configuration management for netsentry.
//
// Configuration comes from a YAML file plus environment variables for
// credentials. The file is found in priority order:
//  1. $NETSENTRY_CONFIG
//  2. ./netsentry.yaml
//  3. ~/.config/netsentry/config.yaml
//  4. /etc/netsentry/config.yaml
//
// Messaging credentials (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID) are read
// from the environment, optionally seeded from a .env file in the working
// directory. Environment values always override file values, so tokens
// never need to live in the config file.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// EnvBotToken supplies the messaging bot token
	EnvBotToken = "TELEGRAM_BOT_TOKEN"
	// EnvChatID supplies the destination chat identifier
	EnvChatID = "TELEGRAM_CHAT_ID"

	defaultTemplate = "ALERT: unauthorized device {mac} ({ip}) on {subnet} at {timestamp}"
)

// Load finds and loads the config file, applies environment overrides,
// and validates the result. A missing config file yields defaults.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", cfg.Validate()
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = "./netsentry.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if len(c.Scan.Subnets) == 0 {
		c.Scan.Subnets = []string{"192.168.1.0/24"}
	}
	if c.Scan.Interval == 0 {
		c.Scan.Interval = Duration(5 * time.Minute)
	}
	if c.Scan.SubnetTimeout == 0 {
		c.Scan.SubnetTimeout = Duration(30 * time.Second)
	}
	if c.Scan.CycleTimeout == 0 {
		c.Scan.CycleTimeout = Duration(2 * time.Minute)
	}
	if c.Scan.MaxConcurrent == 0 {
		c.Scan.MaxConcurrent = 4
	}
	if c.Policy.WhitelistPath == "" {
		c.Policy.WhitelistPath = "./data/whitelist.txt"
	}
	if c.Policy.BlacklistPath == "" {
		c.Policy.BlacklistPath = "./data/blacklist.txt"
	}
	if c.Alerts.Cooldown == 0 {
		c.Alerts.Cooldown = Duration(5 * time.Minute)
	}
	if c.Alerts.MaxAttempts == 0 {
		c.Alerts.MaxAttempts = 3
	}
	if c.Alerts.AttemptTimeout == 0 {
		c.Alerts.AttemptTimeout = Duration(10 * time.Second)
	}
	if c.Alerts.Template == "" {
		c.Alerts.Template = defaultTemplate
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9178"
	}
}

// applyEnv overlays credentials from the environment. A .env file in the
// working directory is loaded first if present; real environment variables
// win over .env entries, which win over config file values.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(EnvBotToken); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv(EnvChatID); v != "" {
		c.Telegram.ChatID = v
	}
}

// Validate checks the configuration for values the monitor cannot run with
func (c *Config) Validate() error {
	for _, subnet := range c.Scan.Subnets {
		if _, _, err := net.ParseCIDR(subnet); err != nil {
			return fmt.Errorf("invalid subnet %q: %w", subnet, err)
		}
	}
	if c.Scan.Interval.Duration() <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", c.Scan.Interval.Duration())
	}
	if c.Scan.SubnetTimeout.Duration() <= 0 {
		return fmt.Errorf("subnet timeout must be positive, got %s", c.Scan.SubnetTimeout.Duration())
	}
	if c.Scan.CycleTimeout.Duration() < c.Scan.SubnetTimeout.Duration() {
		return fmt.Errorf("cycle timeout %s is shorter than subnet timeout %s",
			c.Scan.CycleTimeout.Duration(), c.Scan.SubnetTimeout.Duration())
	}
	if c.Alerts.MaxAttempts < 1 {
		return fmt.Errorf("alert max attempts must be at least 1, got %d", c.Alerts.MaxAttempts)
	}
	return nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

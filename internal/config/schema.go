package config

import (
	"time"
)

// Config is the root configuration structure. It is loaded once at startup
// and treated as an immutable snapshot by every component; nothing in the
// monitor mutates configuration at runtime.
type Config struct {
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Scan     ScanConfig     `yaml:"scan"`
	Policy   PolicyConfig   `yaml:"policy"`
	Alerts   AlertConfig    `yaml:"alerts"`
	Telegram TelegramConfig `yaml:"telegram"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig holds inventory database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Output string `yaml:"output"` // stdout or stderr
	Debug  bool   `yaml:"debug"`  // forces debug level
}

// ScanConfig holds discovery settings
type ScanConfig struct {
	// Subnets are the CIDR ranges to monitor
	Subnets []string `yaml:"subnets"`
	// Interface used for ARP scanning of local subnets
	Interface string `yaml:"interface"`
	// Interval between scan cycles
	Interval Duration `yaml:"interval"`
	// SubnetTimeout bounds a single subnet scan
	SubnetTimeout Duration `yaml:"subnet_timeout"`
	// CycleTimeout bounds a whole cycle including all subnet scans
	CycleTimeout Duration `yaml:"cycle_timeout"`
	// MaxConcurrent caps parallel subnet scans within one cycle
	MaxConcurrent int `yaml:"max_concurrent"`
	// ARPScanPath overrides the arp-scan binary location
	ARPScanPath string `yaml:"arp_scan_path,omitempty"`
}

// PolicyConfig points at the externally-maintained allow/deny list files.
// The files hold one MAC or IP per line; '#' starts a comment.
type PolicyConfig struct {
	WhitelistPath string `yaml:"whitelist_path"`
	BlacklistPath string `yaml:"blacklist_path"`
}

// AlertConfig holds dispatch settings
type AlertConfig struct {
	// Cooldown is the minimum time between two deliveries for the same
	// device and event kind
	Cooldown Duration `yaml:"cooldown"`
	// MaxAttempts bounds delivery retries per event occurrence
	MaxAttempts int `yaml:"max_attempts"`
	// AttemptTimeout bounds a single transport call
	AttemptTimeout Duration `yaml:"attempt_timeout"`
	// Template is the alert message; placeholders {mac}, {ip}, {hostname},
	// {vendor}, {subnet} and {timestamp} are substituted per event
	Template string `yaml:"template"`
}

// TelegramConfig holds messaging credentials. Token and chat ID are
// normally supplied via TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID (optionally
// seeded from a .env file); values in the config file are a fallback.
type TelegramConfig struct {
	Token  string `yaml:"token,omitempty"`
	ChatID string `yaml:"chat_id,omitempty"`
}

// MetricsConfig holds the optional Prometheus listener settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

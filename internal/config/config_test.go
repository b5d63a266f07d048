package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "./netsentry.db", cfg.Database.Path)
	assert.Equal(t, []string{"192.168.1.0/24"}, cfg.Scan.Subnets)
	assert.Equal(t, 5*time.Minute, cfg.Scan.Interval.Duration())
	assert.Equal(t, 30*time.Second, cfg.Scan.SubnetTimeout.Duration())
	assert.Equal(t, 2*time.Minute, cfg.Scan.CycleTimeout.Duration())
	assert.Equal(t, 5*time.Minute, cfg.Alerts.Cooldown.Duration())
	assert.Equal(t, 3, cfg.Alerts.MaxAttempts)
	assert.NotEmpty(t, cfg.Alerts.Template)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netsentry.yaml")

	data := `
version: 1
database:
  path: /var/lib/netsentry/inventory.db
scan:
  subnets:
    - 10.0.0.0/24
    - 192.168.50.0/24
  interface: eth1
  interval: 2m
  subnet_timeout: 15s
  cycle_timeout: 90s
  max_concurrent: 2
alerts:
  cooldown: 300s
  max_attempts: 5
  template: "new device {mac} at {ip}"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, loadedPath, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, loadedPath)

	assert.Equal(t, "/var/lib/netsentry/inventory.db", cfg.Database.Path)
	assert.Equal(t, []string{"10.0.0.0/24", "192.168.50.0/24"}, cfg.Scan.Subnets)
	assert.Equal(t, "eth1", cfg.Scan.Interface)
	assert.Equal(t, 2*time.Minute, cfg.Scan.Interval.Duration())
	assert.Equal(t, 15*time.Second, cfg.Scan.SubnetTimeout.Duration())
	assert.Equal(t, 2, cfg.Scan.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, cfg.Alerts.Cooldown.Duration())
	assert.Equal(t, 5, cfg.Alerts.MaxAttempts)
	assert.Equal(t, "new device {mac} at {ip}", cfg.Alerts.Template)

	// Unspecified values fall back to defaults
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Alerts.AttemptTimeout.Duration())
}

func TestLoadFromPathInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [not: closed"), 0o644))

	_, _, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad subnet",
			mutate:  func(c *Config) { c.Scan.Subnets = []string{"not-a-cidr"} },
			wantErr: "invalid subnet",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Scan.Interval = 0 },
			wantErr: "interval must be positive",
		},
		{
			name: "cycle timeout shorter than subnet timeout",
			mutate: func(c *Config) {
				c.Scan.SubnetTimeout = Duration(time.Minute)
				c.Scan.CycleTimeout = Duration(time.Second)
			},
			wantErr: "shorter than subnet timeout",
		},
		{
			name:    "no attempts",
			mutate:  func(c *Config) { c.Alerts.MaxAttempts = -1 },
			wantErr: "at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netsentry.yaml")
	data := `
telegram:
  token: file-token
  chat_id: file-chat
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	t.Setenv(EnvBotToken, "env-token")
	t.Setenv(EnvChatID, "env-chat")

	cfg, _, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "env-chat", cfg.Telegram.ChatID)
}

func TestFindConfigPathExplicitEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	t.Setenv(EnvConfigPath, path)
	assert.Equal(t, path, FindConfigPath())
}

func TestFindConfigPathXDG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netsentry", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, path, FindConfigPath())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Scan.Subnets = []string{"172.16.0.0/24"}
	require.NoError(t, cfg.Save(path))

	loaded, _, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Scan.Subnets, loaded.Scan.Subnets)
	assert.Equal(t, cfg.Scan.Interval, loaded.Scan.Interval)
}

package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath points at an explicit config file, bypassing the search
	EnvConfigPath = "NETSENTRY_CONFIG"

	configFileName = "netsentry.yaml"
	configDirName  = "netsentry"
)

// searchPaths lists the candidate config locations in priority order:
// working directory, XDG config home, ~/.config, then system-wide.
func searchPaths() []string {
	paths := []string{configFileName}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, configDirName, "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", configDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", configDirName, "config.yaml"))
}

// FindConfigPath returns the first existing config file, preferring an
// explicit $NETSENTRY_CONFIG over the search locations. Empty string
// means no config file was found and defaults apply.
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" && fileExists(path) {
		return path
	}

	for _, candidate := range searchPaths() {
		if !fileExists(candidate) {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
		return candidate
	}
	return ""
}

// EnsureConfigDir creates the parent directory for a config path
func EnsureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

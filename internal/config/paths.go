package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "WIFINDER_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "wifinder.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "wifinder"
)

// FindConfigPath searches for config file in priority order:
// 1. $WIFINDER_CONFIG (explicit path)
// 2. ./wifinder.yaml (working directory)
// 3. $XDG_CONFIG_HOME/wifinder/config.yaml
// 4. ~/.config/wifinder/config.yaml
// 5. /etc/wifinder/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

// DefaultDBPath returns the default database location under the user's
// config directory, falling back to the working directory.
func DefaultDBPath() string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, ConfigDirName, "wifinder.db")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName, "wifinder.db")
	}
	return "./wifinder.db"
}

// EnsureConfigDir creates the parent directory for the given path
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

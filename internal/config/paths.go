// Package config provides configuration management for the transfer engine.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the default log directory for xferctl.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\xferengine\logs
//   - Unix: ~/.config/xferengine/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "xferengine-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "xferengine", "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "xferengine-logs")
		}
		return filepath.Join(homeDir, ".config", "xferengine", "logs")
	}
	return filepath.Join(configDir, "xferengine", "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}

// DefaultConfigPath returns the default path for the engine config file.
//
//   - Windows: %USERPROFILE%\.config\xferengine\config
//   - Unix: ~/.config/xferengine/config
func DefaultConfigPath() (string, error) {
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", os.ErrNotExist
		}
		return filepath.Join(userProfile, ".config", "xferengine", "config"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "xferengine", "config"), nil
}

package config

import (
	"os"
	"path/filepath"
)

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "kana", "config.toml")
}

// DefaultPendingPath is where the file pending store keeps an unsynced game.
func DefaultPendingPath() string {
	return filepath.Join(XDGDataHome(), "kana", "pending.json")
}

// DefaultTokenPath is where the CLI keeps the signed-in identity.
func DefaultTokenPath() string {
	return filepath.Join(XDGDataHome(), "kana", "identity.json")
}

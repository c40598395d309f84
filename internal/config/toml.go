package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the client's TOML configuration file.
type FileConfig struct {
	Server  ServerConfig  `toml:"server"`
	Game    GameConfig    `toml:"game"`
	Pending PendingConfig `toml:"pending"`
}

// ServerConfig points the client at a kana server.
type ServerConfig struct {
	URL *string `toml:"url"`
}

// GameConfig maps play settings.
type GameConfig struct {
	RoundLimit   *int  `toml:"round-limit"`
	KatakanaHint *bool `toml:"katakana-hint"`
	RomajiHint   *bool `toml:"romaji-hint"`
}

// PendingConfig selects where unsynced games are staged.
type PendingConfig struct {
	Backend  *string `toml:"backend"` // "file" | "redis"
	Path     *string `toml:"path"`
	RedisURL *string `toml:"redis-url"`
}

// Client is FileConfig with defaults applied.
type Client struct {
	ServerURL      string
	RoundLimit     int
	KatakanaHint   bool
	RomajiHint     bool
	PendingBackend string
	PendingPath    string
	RedisURL       string
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// LoadClient reads path and fills in defaults.
func LoadClient(path string) (Client, error) {
	fc, err := LoadConfig(path)
	if err != nil {
		return Client{}, err
	}
	return fc.Resolve()
}

// Resolve applies defaults and validates the result.
func (fc FileConfig) Resolve() (Client, error) {
	c := Client{
		ServerURL:      "http://localhost:5175",
		RoundLimit:     10,
		KatakanaHint:   true,
		RomajiHint:     true,
		PendingBackend: "file",
		PendingPath:    DefaultPendingPath(),
	}
	if fc.Server.URL != nil {
		c.ServerURL = *fc.Server.URL
	}
	if fc.Game.RoundLimit != nil {
		if *fc.Game.RoundLimit <= 0 {
			return Client{}, fmt.Errorf("game.round-limit must be positive, got %d", *fc.Game.RoundLimit)
		}
		c.RoundLimit = *fc.Game.RoundLimit
	}
	if fc.Game.KatakanaHint != nil {
		c.KatakanaHint = *fc.Game.KatakanaHint
	}
	if fc.Game.RomajiHint != nil {
		c.RomajiHint = *fc.Game.RomajiHint
	}
	if fc.Pending.Backend != nil {
		c.PendingBackend = *fc.Pending.Backend
	}
	if fc.Pending.Path != nil {
		c.PendingPath = *fc.Pending.Path
	}
	if fc.Pending.RedisURL != nil {
		c.RedisURL = *fc.Pending.RedisURL
	}
	switch c.PendingBackend {
	case "file":
	case "redis":
		if c.RedisURL == "" {
			return Client{}, fmt.Errorf("pending.backend = \"redis\" needs pending.redis-url")
		}
	default:
		return Client{}, fmt.Errorf("unknown pending.backend %q", c.PendingBackend)
	}
	return c, nil
}

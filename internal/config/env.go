// Package config loads server settings from the environment and client
// settings from a TOML file under the XDG config directory.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Server is the server's runtime configuration.
type Server struct {
	Port           string
	DBPath         string
	LogLevel       string
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool
	RoundLimit     int
	PendingBackend string // "sql" | "redis"
	RedisURL       string
	PendingTTL     time.Duration
	SessionIdle    time.Duration
}

// LoadServer reads .env (if present) and then the process environment.
func LoadServer() Server {
	_ = godotenv.Load()
	return ServerFromEnv()
}

// ServerFromEnv reads settings from the environment only.
func ServerFromEnv() Server {
	return Server{
		Port:           getEnv("PORT", "5175"),
		DBPath:         getEnv("DB_PATH", "./data/kana.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: envInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", "kana_token"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:     os.Getenv("NODE_ENV") == "production",
		RoundLimit:     envInt("ROUND_LIMIT", 10),
		PendingBackend: getEnv("PENDING_BACKEND", "sql"),
		RedisURL:       os.Getenv("REDIS_URL"),
		PendingTTL:     time.Duration(envInt("PENDING_TTL_DAYS", 30)) * 24 * time.Hour,
		SessionIdle:    time.Duration(envInt("SESSION_IDLE_MINUTES", 60)) * time.Minute,
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envInt parses k as a positive integer, falling back to def.
func envInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
		return n
	}
	return def
}

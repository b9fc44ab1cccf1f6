package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

type Config struct {
	StatsAPIKey    string
	StatsBaseURL   string
	SessionBaseURL string
	SessionToken   string
	DBPath         string
	ServerPort     string
	LogLevel       string
}

// Load reads .env and the environment. It runs before the logger exists
// (the logger's level comes from here), so nothing is logged; main logs
// the loaded values once the logger is up.
func Load() (*Config, error) {
	// a missing .env just means plain environment variables
	_ = godotenv.Load()

	cfg := &Config{
		StatsAPIKey:    getEnv("STATS_API_KEY", ""),
		StatsBaseURL:   getEnv("STATS_BASE_URL", "https://stats.example.com"),
		SessionBaseURL: getEnv("SESSION_BASE_URL", "https://127.0.0.1:2999"),
		SessionToken:   getEnv("SESSION_TOKEN", ""),
		DBPath:         getEnv("DB_PATH", "scout.db"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	if cfg.StatsAPIKey == "" {
		return nil, fmt.Errorf("STATS_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)

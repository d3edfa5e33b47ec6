package config

import (
	"errors"
	"os"
	"time"
)

// Config содержит конфигурацию sync-сервера.
// Значения читаются из окружения; .env подхватывается в main через godotenv.
type Config struct {
	ServerPort     string
	DatabasePath   string
	JWTSecret      string
	LogLevel       string
	AccessTokenTTL time.Duration
	RateLimit      int
	RateWindow     time.Duration
}

// Load читает конфигурацию из переменных окружения
func Load() (*Config, error) {
	ttlStr := getEnv("ACCESS_TOKEN_TTL", "12h")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, errors.New("invalid ACCESS_TOKEN_TTL format")
	}

	windowStr := getEnv("RATE_WINDOW", "1m")
	window, err := time.ParseDuration(windowStr)
	if err != nil {
		return nil, errors.New("invalid RATE_WINDOW format")
	}

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		DatabasePath:   getEnv("DATABASE_PATH", "stagesync.db"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AccessTokenTTL: ttl,
		RateLimit:      300,
		RateWindow:     window,
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

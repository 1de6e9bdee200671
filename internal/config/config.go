package config

import (
	"os"
	"strings"
	"time"
)

type AppConfig struct {
	// Server
	HTTPAddr  string
	RedisAddr string
	RedisPass string

	// Postgres audit trail. Empty disables auditing.
	DatabaseURL string

	// Identity provider: "http" talks to the hosted REST endpoint,
	// "local" keeps accounts in memory for development.
	ProviderMode    string
	ProviderBaseURL string
	ProviderAPIKey  string

	// Session lifecycle policy
	IdleTimeout      time.Duration
	ValidateInterval time.Duration
	TouchDebounce    time.Duration

	// Where the page guard redirects unauthenticated requests.
	LoginPath string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),
		RedisAddr: getEnv("REDIS_ADDR", "redis-gestia:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		ProviderMode:    strings.ToLower(getEnv("PROVIDER_MODE", "http")),
		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://identitytoolkit.googleapis.com"),
		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),

		IdleTimeout:      getEnvDuration("SESSION_IDLE_TIMEOUT", 5*time.Minute),
		ValidateInterval: getEnvDuration("SESSION_VALIDATE_INTERVAL", 5*time.Minute),
		TouchDebounce:    getEnvDuration("SESSION_TOUCH_DEBOUNCE", 30*time.Second),

		LoginPath: getEnv("LOGIN_PATH", "/login"),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

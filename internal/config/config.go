package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL        string
	WSURL             string
	DBFile            string
	PollInterval      time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	AlertDuration     time.Duration
	RefreshDelay      time.Duration
}

func Load() (*Config, error) {
	// Missing .env is fine, env vars may come from the environment itself.
	_ = godotenv.Load()

	pollInterval, err := time.ParseDuration(getEnv("POLL_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	reconnectDelay, err := time.ParseDuration(getEnv("RECONNECT_DELAY", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONNECT_DELAY: %w", err)
	}

	alertDuration, err := time.ParseDuration(getEnv("ALERT_DURATION", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_DURATION: %w", err)
	}

	refreshDelay, err := time.ParseDuration(getEnv("REFRESH_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_DELAY: %w", err)
	}

	reconnectAttempts := 5
	if v := os.Getenv("RECONNECT_ATTEMPTS"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &reconnectAttempts); err != nil {
			return nil, fmt.Errorf("invalid RECONNECT_ATTEMPTS: %w", err)
		}
	}

	cfg := &Config{
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8080"),
		WSURL:             getEnv("WS_URL", "ws://localhost:8080/ws"),
		DBFile:            getEnv("CINDER_DB", "cinder.db"),
		PollInterval:      pollInterval,
		ReconnectAttempts: reconnectAttempts,
		ReconnectDelay:    reconnectDelay,
		AlertDuration:     alertDuration,
		RefreshDelay:      refreshDelay,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}

	if c.WSURL == "" {
		return fmt.Errorf("WS_URL is required")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be greater than 0")
	}

	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("RECONNECT_ATTEMPTS must not be negative")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Package config is the tunables surface of the conversation core.
// Process bootstrap and env-file loading live with the caller.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	StrapiURL   string
	StrapiToken string

	// HTTPTimeout bounds every single call to the store.
	HTTPTimeout time.Duration

	// RemoveVerifyAttempts and RemoveVerifyDelay set the removal
	// verification budget: at most Attempts re-fetches, Delay apart.
	// The worst-case blocking time per removal is Attempts x Delay.
	RemoveVerifyAttempts int
	RemoveVerifyDelay    time.Duration
}

func Load() *Config {
	return &Config{
		StrapiURL:            getEnv("STRAPI_URL", "http://localhost:1337"),
		StrapiToken:          getEnv("STRAPI_TOKEN", ""),
		HTTPTimeout:          getEnvDuration("STRAPI_HTTP_TIMEOUT", 30*time.Second),
		RemoveVerifyAttempts: getEnvInt("REMOVE_VERIFY_ATTEMPTS", 3),
		RemoveVerifyDelay:    getEnvDuration("REMOVE_VERIFY_DELAY", 2*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

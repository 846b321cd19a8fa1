package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	Port          string
	RedisURL      string
	PixelID       string
	AccessToken   string
	APIVersion    string
	TestEventCode string
	GraphAPIURL   string
	NumWorkers    int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "4000")
	redisURL := getEnv("REDIS_URL", "")
	pixelID := getEnv("PIXEL_ID", "")
	accessToken := getEnv("ACCESS_TOKEN", "")
	apiVersion := getEnv("API_VERSION", "v19.0")
	testEventCode := getEnv("TEST_EVENT_CODE", "")
	graphAPIURL := getEnv("GRAPH_API_URL", "https://graph.facebook.com")
	numWorkers := getEnvInt("NUM_WORKERS", 5)

	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return &Config{
		Port:          port,
		RedisURL:      redisURL,
		PixelID:       pixelID,
		AccessToken:   accessToken,
		APIVersion:    apiVersion,
		TestEventCode: testEventCode,
		GraphAPIURL:   graphAPIURL,
		NumWorkers:    numWorkers,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// loadDotEnv is a seam for tests.
var loadDotEnv = func() error { return godotenv.Load(".env") }

func getEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// parseEnv overlays variables from an optional .env file and the process
// environment:
//
//	DRIVE_IDENTITY, DRIVE_AUDIENCE, DRIVE_SCHEME, DRIVE_VAULT,
//	DRIVE_DOWNLOAD_DIR, DRIVE_PREFETCH_THRESHOLD, DRIVE_MAX_FETCH_ATTEMPTS,
//	LOG_LEVEL, LOG_FORMAT
func parseEnv(c *Config) {
	_ = loadDotEnv()

	c.Identity = getEnv("DRIVE_IDENTITY", c.Identity)
	c.Audience = getEnv("DRIVE_AUDIENCE", c.Audience)
	c.Scheme = getEnv("DRIVE_SCHEME", c.Scheme)
	c.VaultPath = getEnv("DRIVE_VAULT", c.VaultPath)
	c.DownloadDir = getEnv("DRIVE_DOWNLOAD_DIR", c.DownloadDir)
	c.PrefetchThreshold = getEnvFloat("DRIVE_PREFETCH_THRESHOLD", c.PrefetchThreshold)
	c.MaxFetchAttempts = getEnvInt("DRIVE_MAX_FETCH_ATTEMPTS", c.MaxFetchAttempts)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv is a seam for tests.
var loadDotEnv = func() error { return godotenv.Load(".env") }

// GetEnv returns the value of the environment variable named by key, or
// fallback if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt is GetEnv for integers. Invalid values fall back.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// parseEnv overlays variables from an optional .env file and the process
// environment. A missing .env file is not an error.
//
// Recognized variables:
//
//	DRIVE_ADDR, DRIVE_IDENTITY, DATABASE_DSN, JWT_SECRET, STORAGE_KEY,
//	TOKEN_VALIDITY_MINUTES, S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET,
//	S3_REGION, S3_BASE_ENDPOINT, LOG_LEVEL, LOG_FORMAT
func parseEnv(c *Config) {
	_ = loadDotEnv()

	c.EndpointAddrHTTP = GetEnv("DRIVE_ADDR", c.EndpointAddrHTTP)
	c.Identity = GetEnv("DRIVE_IDENTITY", c.Identity)
	c.DatabaseDSN = GetEnv("DATABASE_DSN", c.DatabaseDSN)
	c.SecretKey = GetEnv("JWT_SECRET", c.SecretKey)
	c.StorageKey = GetEnv("STORAGE_KEY", c.StorageKey)

	minutes := GetEnvInt("TOKEN_VALIDITY_MINUTES", int(c.AccessTokenValidityDuration.Minutes()))
	c.AccessTokenValidityDuration = time.Duration(minutes) * time.Minute

	c.S3RootUser = GetEnv("S3_ROOT_USER", c.S3RootUser)
	c.S3RootPassword = GetEnv("S3_ROOT_PASSWORD", c.S3RootPassword)
	c.S3Bucket = GetEnv("S3_BUCKET", c.S3Bucket)
	c.S3Region = GetEnv("S3_REGION", c.S3Region)
	c.S3BaseEndpoint = GetEnv("S3_BASE_ENDPOINT", c.S3BaseEndpoint)
	c.LogLevel = GetEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = GetEnv("LOG_FORMAT", c.LogFormat)
}

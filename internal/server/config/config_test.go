package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DRIVE_ADDR", "DRIVE_IDENTITY", "DATABASE_DSN", "JWT_SECRET", "STORAGE_KEY",
	"TOKEN_VALIDITY_MINUTES", "S3_ROOT_USER", "S3_ROOT_PASSWORD", "S3_BUCKET",
	"S3_REGION", "S3_BASE_ENDPOINT", "LOG_LEVEL", "LOG_FORMAT",
}

func isolate(t *testing.T, args ...string) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	origLoad := loadDotEnv
	loadDotEnv = func() error { return nil }
	origArgs := os.Args
	os.Args = append([]string{"testbin"}, args...)
	t.Cleanup(func() {
		loadDotEnv = origLoad
		os.Args = origArgs
	})
}

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, "localhost:8080", c.Identity)
	assert.Empty(t, c.DatabaseDSN)
	assert.Empty(t, c.S3BaseEndpoint)
	assert.Equal(t, 60*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, "info", c.LogLevel)

	key, err := c.StorageKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 16)
}

func TestLoadConfig_DefaultsOnly(t *testing.T) {
	isolate(t)
	assert.Empty(t, cmp.Diff(defaults(), LoadConfig()))
}

func TestParseEnv(t *testing.T) {
	isolate(t)
	t.Setenv("DRIVE_ADDR", ":9000")
	t.Setenv("DATABASE_DSN", "postgres://x")
	t.Setenv("TOKEN_VALIDITY_MINUTES", "5")
	t.Setenv("S3_BASE_ENDPOINT", "http://minio:9000/")

	c := defaults()
	parseEnv(c)

	assert.Equal(t, ":9000", c.EndpointAddrHTTP)
	assert.Equal(t, "postgres://x", c.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, "http://minio:9000/", c.S3BaseEndpoint)
	assert.Equal(t, "secretKey", c.SecretKey)
}

func TestParseEnv_BadIntFallsBack(t *testing.T) {
	isolate(t)
	t.Setenv("TOKEN_VALIDITY_MINUTES", "soon")

	c := defaults()
	parseEnv(c)
	assert.Equal(t, 60*time.Minute, c.AccessTokenValidityDuration)
}

func TestParseJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(map[string]any{
		"endpoint_addr_http":             "127.0.0.1:9090",
		"database_dsn":                   "postgres://db",
		"access_token_validity_duration": "2h",
		"s3_bucket":                      "bucket",
		"log_format":                     "text",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	isolate(t, "-config", path)

	c := defaults()
	parseJson(c)

	assert.Equal(t, "127.0.0.1:9090", c.EndpointAddrHTTP)
	assert.Equal(t, "postgres://db", c.DatabaseDSN)
	assert.Equal(t, 2*time.Hour, c.AccessTokenValidityDuration)
	assert.Equal(t, "bucket", c.S3Bucket)
	assert.Equal(t, "text", c.LogFormat)
	// untouched fields keep their defaults
	assert.Equal(t, "secretKey", c.SecretKey)
}

func TestParseJson_InvalidPanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	isolate(t, "-c", path)

	require.Panics(t, func() { parseJson(defaults()) })
}

func TestParseFlags(t *testing.T) {
	isolate(t,
		"-a", "127.0.0.1:9090", "-i", "frodo.example", "-d", "db", "-s", "secret",
		"-k", "ffffffffffffffffffffffffffffffff", "-t", "3",
		"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
		"-l", "debug", "-f", "text",
	)

	c := &Config{}
	require.NotPanics(t, func() { parseFlags(c) })

	assert.Empty(t, cmp.Diff(&Config{
		EndpointAddrHTTP:            "127.0.0.1:9090",
		Identity:                    "frodo.example",
		DatabaseDSN:                 "db",
		SecretKey:                   "secret",
		StorageKey:                  "ffffffffffffffffffffffffffffffff",
		AccessTokenValidityDuration: 3 * time.Minute,
		S3RootUser:                  "user",
		S3RootPassword:              "password",
		S3Bucket:                    "bucket",
		S3Region:                    "us-west-1",
		S3BaseEndpoint:              "http://endpoint",
		LogLevel:                    "debug",
		LogFormat:                   "text",
	}, c))
}

func TestStorageKeyBytes_Invalid(t *testing.T) {
	for _, k := range []string{"zz", "0011"} {
		c := &Config{StorageKey: k}
		_, err := c.StorageKeyBytes()
		require.ErrorIs(t, err, common.ErrConfig)
	}
}

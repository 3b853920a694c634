// Package config handles configuration for the reference drive host,
// including defaults, .env and environment overlay, JSON overlay, and
// command-line flags.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
)

// Config holds runtime settings for the drive host.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP API.
//   - Identity: the identity name this host serves (used in logs and peer routing).
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory file repository.
//   - SecretKey: HMAC secret for signing session tokens (HS256).
//   - StorageKey: hex encoded 16-byte key that seals stored key headers.
//   - AccessTokenValidityDuration: session token lifetime.
//   - S3*: object storage settings. An empty S3BaseEndpoint selects the in-memory payload store.
//   - LogLevel / LogFormat: see logging.New.
type Config struct {
	EndpointAddrHTTP            string
	Identity                    string
	DatabaseDSN                 string
	SecretKey                   string
	StorageKey                  string
	AccessTokenValidityDuration time.Duration
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
	LogLevel                    string
	LogFormat                   string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret and storage key defaults are insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.Identity = "localhost:8080"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.StorageKey = "000102030405060708090a0b0c0d0e0f"
	c.AccessTokenValidityDuration = 60 * time.Minute
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "drive"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// StorageKeyBytes decodes StorageKey.
func (c *Config) StorageKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: storage key: %v", common.ErrConfig, err)
	}
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: storage key must be %d bytes", common.ErrConfig, cryptox.KeySize)
	}
	return key, nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from .env and the environment, an optional JSON file and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

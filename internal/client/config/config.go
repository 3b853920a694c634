package config

import (
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
)

// Config holds runtime settings for the drive CLI.
//
// Fields:
//   - Identity: identity name of the drive host ("frodo.example", "127.0.0.1:8080").
//   - Audience: API surface the session is provisioned for (owner, apps, guest, peer).
//   - Scheme: URL scheme of the host; "http" for local development hosts.
//   - VaultPath: SQLite file holding the encrypted session.
//   - DownloadDir: where payload and stream output is written.
//   - TimeUpdateInterval, PrefetchThreshold, FetchTimeout: streaming settings.
//   - MaxFetchAttempts: failed fetches of one segment before a stream gives up; 0 retries forever.
//   - LogLevel / LogFormat: see logging.New.
type Config struct {
	Identity           string
	Audience           string
	Scheme             string
	VaultPath          string
	DownloadDir        string
	TimeUpdateInterval time.Duration
	PrefetchThreshold  float64
	FetchTimeout       time.Duration
	MaxFetchAttempts   int
	LogLevel           string
	LogFormat          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Identity = "localhost:8080"
	c.Audience = endpoint.Owner.Path()
	c.Scheme = "https"
	c.VaultPath = "drivekeeper.db"
	c.DownloadDir = "."
	c.TimeUpdateInterval = 250 * time.Millisecond
	c.PrefetchThreshold = 0.6
	c.FetchTimeout = 30 * time.Second
	c.MaxFetchAttempts = 0
	c.LogLevel = "warn"
	c.LogFormat = "text"
}

// ParsedAudience returns Audience as an endpoint.Audience.
func (c *Config) ParsedAudience() (endpoint.Audience, error) {
	return endpoint.ParseAudience(c.Audience)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// .env and the environment, JSON (if present) and command-line flags (if
// present). Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

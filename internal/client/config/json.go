package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/drivekeeper/internal/flagx"
	"github.com/dmitrijs2005/drivekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "250ms" or as integer nanoseconds.
type JsonConfig struct {
	Identity           string         `json:"identity"`
	Audience           string         `json:"audience"`
	Scheme             string         `json:"scheme"`
	VaultPath          string         `json:"vault_path"`
	DownloadDir        string         `json:"download_dir"`
	TimeUpdateInterval timex.Duration `json:"time_update_interval"`
	PrefetchThreshold  float64        `json:"prefetch_threshold"`
	FetchTimeout       timex.Duration `json:"fetch_timeout"`
	MaxFetchAttempts   *int           `json:"max_fetch_attempts"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Only fields present (non-zero) in the file are copied;
// max_fetch_attempts is copied whenever present, so 0 can be set explicitly.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.Identity, jc.Identity)
	setString(&cfg.Audience, jc.Audience)
	setString(&cfg.Scheme, jc.Scheme)
	setString(&cfg.VaultPath, jc.VaultPath)
	setString(&cfg.DownloadDir, jc.DownloadDir)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	if jc.TimeUpdateInterval.Duration > 0 {
		cfg.TimeUpdateInterval = jc.TimeUpdateInterval.Duration
	}
	if jc.FetchTimeout.Duration > 0 {
		cfg.FetchTimeout = jc.FetchTimeout.Duration
	}
	if jc.PrefetchThreshold > 0 {
		cfg.PrefetchThreshold = jc.PrefetchThreshold
	}
	if jc.MaxFetchAttempts != nil && *jc.MaxFetchAttempts >= 0 {
		cfg.MaxFetchAttempts = *jc.MaxFetchAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Package config loads runtime configuration for the drive CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional .env file, then the process environment (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
//	{
//	  "identity": "frodo.example",
//	  "audience": "owner",
//	  "scheme": "https",
//	  "vault_path": "drivekeeper.db",
//	  "time_update_interval": "250ms",
//	  "prefetch_threshold": 0.6
//	}
package config

package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/drivekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-i string   identity name of the drive host
//	-u string   audience (owner, apps, guest, peer)
//	-s string   URL scheme (https or http)
//	-v string   session vault file
//	-o string   download directory
//	-t float    prefetch threshold, 0..1
//	-r int      failed fetches per segment before giving up, 0 retries forever
//	-l string   log level
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-i", "-u", "-s", "-v", "-o", "-t", "-r", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.Identity, "i", cfg.Identity, "identity name of the drive host")
	fs.StringVar(&cfg.Audience, "u", cfg.Audience, "API audience")
	fs.StringVar(&cfg.Scheme, "s", cfg.Scheme, "URL scheme")
	fs.StringVar(&cfg.VaultPath, "v", cfg.VaultPath, "session vault file")
	fs.StringVar(&cfg.DownloadDir, "o", cfg.DownloadDir, "download directory")
	fs.Float64Var(&cfg.PrefetchThreshold, "t", cfg.PrefetchThreshold, "prefetch threshold")
	fs.IntVar(&cfg.MaxFetchAttempts, "r", cfg.MaxFetchAttempts, "max fetch attempts per segment")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
	if cfg.MaxFetchAttempts < 0 {
		panic(fmt.Sprintf("invalid -r %d: must not be negative", cfg.MaxFetchAttempts))
	}
}

// Package migrations embeds the host's goose migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

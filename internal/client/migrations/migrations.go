// Package migrations embeds the schema of the local session vault.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

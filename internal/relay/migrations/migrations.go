// Package migrations embeds the goose migrations for the relay database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

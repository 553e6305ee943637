// Package migrations embeds the client's SQLite schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

// Package migrations embeds the goose migration files for the users table.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

// Package migrations embeds the SQL schema for the one-time code store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

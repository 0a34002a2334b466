// Package migrations embeds the auth server schema.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS

// Package migrations embeds the marketplace schema. Files are applied in
// lexical order by database.RunMigrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the clinic-service schema for golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory inside FS holding the migration files.
const Dir = "."

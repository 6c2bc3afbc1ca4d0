package migrations

import "embed"

// FS contains embedded SQLite migrations for the action queue.
//
//go:embed *.sql
var FS embed.FS

package migrations

import "embed"

// FS contains embedded SQLite migrations for auction house storage.
//
//go:embed *.sql
var FS embed.FS

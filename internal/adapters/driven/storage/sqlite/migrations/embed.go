// Package migrations embeds the SQL schema of the SQLite vector index.
package migrations

import "embed"

// FS contains the numbered *.up.sql files, applied in order.
//
//go:embed *.sql
var FS embed.FS

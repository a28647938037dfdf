// Package migrations embeds the SQL migrations for the SQLite store.
package migrations

import "embed"

// FS holds NNN_name.up.sql files applied in order.
//
//go:embed *.sql
var FS embed.FS

// Package migrations embeds the SQLite schema for router snapshots.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

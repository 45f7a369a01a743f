// Package migrations holds the SQLite schema applied by the shot store.
package migrations

import "embed"

// FS contains the embedded SQL migrations, applied in file name order.
//
//go:embed *.sql
var FS embed.FS

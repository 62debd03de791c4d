// Package migrations holds the numbered SQL schema migrations. Files follow
// the NNNNNN_name.up.sql / NNNNNN_name.down.sql convention so they can also
// be applied with the migrate CLI.
package migrations

import "embed"

// FS contains every migration file.
//
//go:embed *.sql
var FS embed.FS

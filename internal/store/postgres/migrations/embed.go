package migrations

import "embed"

// FS contains the embedded goose migrations for the link checker schema.
//
//go:embed *.sql
var FS embed.FS

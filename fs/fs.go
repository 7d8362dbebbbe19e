package appfs

import "embed"

// FS holds the goose migrations, one directory per SQL dialect.
//
//go:embed migrations
var FS embed.FS

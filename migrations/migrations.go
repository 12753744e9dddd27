// Package migrations embeds the schema migrations for each supported local store.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

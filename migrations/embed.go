// Package migrations embeds the SQL migrations so the migrate binary does not
// depend on files being present at a known path in the runtime image.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

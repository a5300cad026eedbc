package appfs

import "embed"

// FS holds the SQL migrations, the email templates and static assets.
//
//go:embed migrations all:templates assets
var FS embed.FS

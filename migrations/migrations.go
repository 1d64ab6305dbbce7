// Package migrations bundles the SQL migrations shipped with the migrator,
// one directory per dialect. Files are named
// "<3-digit version>_<name>.<up|down>.sql".
package migrations

import "embed"

// FS holds the bundled migrations under postgres/, sqlite/ and mysql/.
//
//go:embed postgres/*.sql sqlite/*.sql mysql/*.sql
var FS embed.FS

// Package migrations embeds the goose SQL migration sets for each of the
// three databases this module's services connect to (spec.md §4.4's
// three-database deployment): auth, realm, and game. Each lives in its own
// subdirectory so RunMigrations can apply only the set that belongs to a
// given pool.
package migrations

import "embed"

// FS is passed to goose.SetBaseFS so migrations ship inside the binary.
//
//go:embed auth/*.sql realm/*.sql game/*.sql
var FS embed.FS

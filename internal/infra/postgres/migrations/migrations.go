// Package migrations holds the Postgres schema, applied with bun's migrator.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered set registered by this package's init functions.
var Migrations = migrate.NewMigrations()

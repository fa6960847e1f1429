package db

import "embed"

// migrationsFS holds the goose SQL migrations. The SQL is kept portable
// between SQLite and PostgreSQL.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

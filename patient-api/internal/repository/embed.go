package repository

import "embed"

// MigrationsFS содержит SQL-миграции схемы patient-api.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bioattend-api/pkg/config"
)

// Open returns the storage handle for the configured driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case "", config.DriverSQLite:
		return NewSQLite(cfg.SQLitePath)
	case config.DriverPostgres, config.DriverPgx:
		return NewPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Dialect names the migration set for a connected handle.
func Dialect(db *sqlx.DB) string {
	switch db.DriverName() {
	case "postgres", "pgx":
		return "postgres"
	default:
		return "sqlite"
	}
}

package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database, one per handle.
const MemoryPath = ":memory:"

var sqlitePragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
}

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewSQLite opens an embedded SQLite database. Foreign keys are switched on
// per connection through the DSN so cascades hold on every pooled conn.
func NewSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		path = MemoryPath
	}
	memory := path == MemoryPath

	pragmas := sqlitePragmas
	if !memory {
		pragmas = append(pragmas[:len(pragmas):len(pragmas)], "_pragma=journal_mode(WAL)")
	}
	dsn := path + "?" + strings.Join(pragmas, "&") + "&_time_format=sqlite"

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// Each connection to :memory: is its own database, so pin the pool to one.
	if memory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(4)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// runMigrations applies all up migrations for d on db and closes db.
// Callers pass a dedicated handle because migrate closes it.
func runMigrations(d dialect, db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations/"+d.name)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("migrations source: %w", err)
	}

	var drv database.Driver
	switch d.name {
	case dialectPostgres.name:
		drv, err = migratepg.WithInstance(db, &migratepg.Config{})
	default:
		drv, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return fmt.Errorf("migrations driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, d.name, drv)
	if err != nil {
		_ = drv.Close()
		return fmt.Errorf("migrations init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

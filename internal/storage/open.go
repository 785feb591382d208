package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	logx "recurpay/pkg/logx"
)

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*DB, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"))

	var (
		d      dialect
		opener func() (*sql.DB, error)
	)
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		if err := prepareSQLitePath(cfg.Path); err != nil {
			return nil, err
		}
		d, opener = dialectSQLite, func() (*sql.DB, error) { return openSQLite(cfg) }
	case "postgres", "postgresql", "pg":
		d, opener = dialectPostgres, func() (*sql.DB, error) { return openPostgres(cfg) }
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}

	mdb, err := opener()
	if err != nil {
		return nil, fmt.Errorf("open %s for migrations: %w", d.name, err)
	}
	if err := runMigrations(d, mdb); err != nil {
		return nil, err
	}

	db, err := opener()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if d.name == dialectSQLite.name {
		applySQLitePragmas(ctx, db, log)
	}

	log.Info("storage ready", logx.String("driver", d.name))
	return &DB{db: db, d: d, log: log}, nil
}

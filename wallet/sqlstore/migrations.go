// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

// applyMigrations brings the schema of the given database up to date
// using the embedded migration files.
func applyMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(sqliteFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("create source driver: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", sourceDriver, "sqlite", driver,
	)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debugf("Database schema is up to date")

	case err != nil:
		return fmt.Errorf("run migrations: %w", err)

	default:
		version, _, _ := m.Version()
		log.Infof("Database schema migrated to version %d", version)
	}

	return nil
}

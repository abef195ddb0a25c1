package database

import (
	"embed"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// MigrateURL applies all pending migrations against databaseURL
// (sqlite://<path> or postgres://...). The two backends need separate DDL
// (surrogate-key generation differs), so migrations are kept per dialect.
// A migration failure means the schema cannot be guaranteed and is
// batch-fatal for callers.
func MigrateURL(databaseURL string, log *logrus.Logger) error {
	dir := "migrations/sqlite"
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		dir = "migrations/postgres"
	}

	source, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.WithError(srcErr).Warn("Could not close migration source")
		}
		if dbErr != nil {
			log.WithError(dbErr).Warn("Could not close migration database handle")
		}
	}()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Debug("No pending migrations to run")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}

	log.Info("Database migrations applied")
	return nil
}

// MigrateSQLite applies the schema to a sqlite database file.
func MigrateSQLite(path string, log *logrus.Logger) error {
	return MigrateURL("sqlite://"+path, log)
}

package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirtySchema means an earlier migration stopped halfway and needs manual
// repair before the service can start.
var ErrDirtySchema = errors.New("database schema is dirty")

// RunMigrations brings the schema up to the newest migration under
// migrationsPath. It refuses to run on a dirty schema.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("opening migrations at %s: %w", migrationsPath, err)
	}
	defer m.Close()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case dirty:
		return fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("database schema up to date", "version", from)
			return nil
		}
		return fmt.Errorf("migrating schema from version %d: %w", from, err)
	}

	to, _, _ := m.Version()
	slog.Info("database schema migrated", "from", from, "to", to)
	return nil
}

package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/txgnn-explorer/backend/pkg/logger"
)

// Migrate applies all pending migrations from dir to the database at url.
func Migrate(dir, url string) error {
	source := dir
	if !strings.HasPrefix(source, "file://") {
		source = "file://" + source
	}

	m, err := migrate.New(source, url)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info("Database migrated", "version", version, "dirty", dirty)
	return nil
}

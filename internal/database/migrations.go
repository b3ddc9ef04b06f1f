package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// RunMigrations brings the study store schema up to the latest version using
// the SQL files under migrationsPath. A store already at the latest version
// is not an error. Runs once at startup before the connection pool is opened.
func RunMigrations(databaseURL, migrationsPath string, logger *logrus.Logger) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("opening migration source: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.WithFields(logrus.Fields{
				"source_error":   srcErr,
				"database_error": dbErr,
			}).Warn("Failed to close migrator cleanly")
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Study store schema already up to date")
			return nil
		}
		return fmt.Errorf("applying schema migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.WithError(err).Warn("Could not read schema version after migrating")
		return nil
	}
	logger.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info("Study store schema migrated")
	return nil
}

package pgx

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EnsureSchema brings the database schema up to date. ErrNoChange is not an
// error.
func (s *GraphDBStorage) EnsureSchema(ctx context.Context) error {
	if s.databaseURL == "" {
		return s.applySchema(ctx)
	}
	return Migrate(s.databaseURL)
}

// Migrate runs all embedded up migrations against databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("[Store][pgx] Schema up to date")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("[Store][pgx] Schema migrated")
	return nil
}

// applySchema executes the up migrations directly. Every statement is
// IF NOT EXISTS, so this is idempotent.
func (s *GraphDBStorage) applySchema(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !isUpMigration(e.Name()) {
			continue
		}
		sql, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := s.conn.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", e.Name(), err)
		}
	}
	return nil
}

func isUpMigration(name string) bool {
	const suffix = ".up.sql"
	return len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix
}

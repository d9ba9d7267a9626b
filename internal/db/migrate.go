package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsDir is the directory inside the embedded FS holding *.up.sql/*.down.sql files.
const migrationsDir = "migrations"

// MigrationStatus holds information about database migration state
type MigrationStatus struct {
	CurrentVersion uint
	LatestVersion  uint
	Dirty          bool
	Pending        bool
}

// Migrate applies every pending up migration found in migrationFS.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS) error {
	m, err := d.migrator(migrationFS)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, _, _ := m.Version()
	d.logger.InfoContext(ctx, "migrations applied", slog.Uint64("version", uint64(version)))
	return nil
}

// MigrateDown rolls back every applied migration.
func MigrateDown(ctx context.Context, d *DB, migrationFS fs.FS) error {
	m, err := d.migrator(migrationFS)
	if err != nil {
		return err
	}

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}

	d.logger.InfoContext(ctx, "migrations rolled back")
	return nil
}

// Status reports the applied and latest available migration versions.
func Status(d *DB, migrationFS fs.FS) (*MigrationStatus, error) {
	m, err := d.migrator(migrationFS)
	if err != nil {
		return nil, err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("read migration version: %w", err)
	}

	source, err := iofs.New(migrationFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	defer source.Close()

	var latest uint
	if first, err := source.First(); err == nil {
		latest = first
		for {
			next, err := source.Next(latest)
			if err != nil {
				break
			}
			latest = next
		}
	}

	return &MigrationStatus{
		CurrentVersion: version,
		LatestVersion:  latest,
		Dirty:          dirty,
		Pending:        version < latest,
	}, nil
}

// Seed executes every *.sql file in the seed directory of seedFS in name order.
// Seed files are expected to be idempotent (INSERT OR IGNORE).
func Seed(ctx context.Context, d *DB, seedFS fs.FS) error {
	entries, err := fs.ReadDir(seedFS, "seed")
	if err != nil {
		return fmt.Errorf("read seed dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	for _, fname := range files {
		b, err := fs.ReadFile(seedFS, path.Join("seed", fname))
		if err != nil {
			return fmt.Errorf("read seed %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec seed %s: %w", fname, err)
		}
		d.logger.InfoContext(ctx, "seed applied", slog.String("file", fname))
	}

	return nil
}

// migrator builds a migrate instance bound to the shared connection. The
// instance is intentionally never closed: closing it would close d.conn.
func (d *DB) migrator(migrationFS fs.FS) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(d.conn, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	return migrate.NewWithInstance("iofs", source, "sqlite", driver)
}

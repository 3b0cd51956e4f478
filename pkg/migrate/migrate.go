package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/kairos100/swissluca-backend/pkg/migrate/migrations"
)

// DefaultDir is the on-disk location create and validate work against. The
// binaries run the embedded copy of the same files.
const DefaultDir = "pkg/migrate/migrations"

// Source returns the embedded set for DefaultDir (or ""), otherwise the
// directory on disk.
func Source(dir string) (fs.FS, string) {
	if dir == "" || dir == DefaultDir {
		return migrations.FS, "."
	}
	return os.DirFS(dir), "."
}

func prepare(dir string) (string, error) {
	fsys, root := Source(dir)
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	return root, nil
}

// Run executes a goose command (up, down, status, redo, ...).
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return errors.New("migrate: nil db")
	}
	root, err := prepare(dir)
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, root, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || len(version) != len(versionLayout) {
		return fmt.Errorf("version %q: want %d digits", version, len(versionLayout))
	}
	root, err := prepare(dir)
	if err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch {
	case current < target:
		err = goose.UpToContext(ctx, db, root, target)
	case current > target:
		err = goose.DownToContext(ctx, db, root, target)
	}
	if err != nil {
		return fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// Command migrate manages the Postgres schema.
//
//	migrate [-dir path] up|down|status
//	migrate [-dir path] to <YYYYMMDDHHMMSS>
//	migrate [-dir path] create <name>
//	migrate [-dir path] validate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/db"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/migrate"
)

var errUsage = errors.New("usage: migrate [-dir path] up|down|status|to <version>|create <name>|validate")

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", migrate.DefaultDir, "migrations directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *dir, flag.Args())
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "create":
		if len(rest) != 1 {
			return errUsage
		}
		path, err := migrate.CreateSQLMigration(dir, rest[0])
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		var err error
		if dir == migrate.DefaultDir {
			fsys, _ := migrate.Source(dir)
			err = migrate.ValidateFS(fsys)
		} else {
			err = migrate.ValidateDir(dir)
		}
		if err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	case "up", "down", "status", "to":
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
	if cmd == "to" && len(rest) != 1 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		return errors.New("goose migrations target postgres; sqlite schemas come from SWISSLUCA_AUTO_MIGRATE")
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd, "dir": dir})

	client, err := db.New(ctx, cfg.DB, false, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	if cmd == "to" {
		err = migrate.MigrateToVersion(ctx, sqlDB, dir, rest[0])
	} else {
		err = migrate.Run(ctx, sqlDB, dir, cmd)
	}
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate.done")
	return nil
}

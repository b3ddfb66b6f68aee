package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"budgetledger/internal/config"
	"budgetledger/internal/database"
	"budgetledger/internal/logger"
)

const usage = "usage: migrate <up | down [N] | goto <version> | force <version> | version>"

type command func(m *migrate.Migrate, args []string) error

var commands = map[string]command{
	"up":      up,
	"down":    down,
	"goto":    gotoVersion,
	"force":   force,
	"version": version,
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dbConfig := database.NewConfig(cfg)

	m, err := migrate.New(dbConfig.MigrationsSource(), dbConfig.URL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Get().Warnw("migrate close error", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	return cmd(m, args[1:])
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func versionArg(args []string) (uint, error) {
	if len(args) != 1 {
		return 0, errors.New(usage)
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	return uint(v), nil
}

func up(m *migrate.Migrate, _ []string) error {
	if err := ignoreNoChange(m.Up()); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	logger.Get().Info("Migrations applied successfully")
	return nil
}

func down(m *migrate.Migrate, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		steps = n
	}
	if err := ignoreNoChange(m.Steps(-steps)); err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	logger.Get().Infof("Rolled back %d migration(s)", steps)
	return nil
}

func gotoVersion(m *migrate.Migrate, args []string) error {
	v, err := versionArg(args)
	if err != nil {
		return err
	}
	if err := ignoreNoChange(m.Migrate(v)); err != nil {
		return fmt.Errorf("migrate to %d failed: %w", v, err)
	}
	logger.Get().Infof("Schema at version %d", v)
	return nil
}

// force marks a version as applied without running it, clearing a dirty flag
// left by a failed migration.
func force(m *migrate.Migrate, args []string) error {
	v, err := versionArg(args)
	if err != nil {
		return err
	}
	if err := m.Force(int(v)); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	logger.Get().Infof("Forced version %d", v)
	return nil
}

func version(m *migrate.Migrate, _ []string) error {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Get().Info("No migrations applied")
		return nil
	case err != nil:
		return fmt.Errorf("failed to get version: %w", err)
	}
	logger.Get().Infow("Schema version", "version", v, "dirty", dirty)
	return nil
}

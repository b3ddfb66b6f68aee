package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"budgetledger/internal/config"
	"budgetledger/internal/database"
	"budgetledger/internal/ledger"
	"budgetledger/internal/logger"
	"budgetledger/internal/services"
	"budgetledger/internal/uuid"
)

const usage = "usage: stagingctl <purge [-before RFC3339] | recompute <user-id> <YYYY-MM>>"

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("stagingctl error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}()

	reg := services.NewRegistry(dbManager.DB(), dbManager.UnitOfWork(), services.NewOptions(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "purge":
		return purge(ctx, reg, os.Args[2:])
	case "recompute":
		return recompute(ctx, reg, os.Args[2:])
	default:
		return fmt.Errorf("unknown command: %s\n%s", os.Args[1], usage)
	}
}

func purge(ctx context.Context, reg *services.Registry, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	beforeStr := fs.String("before", "", "delete rows expired at this RFC3339 instant (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	before := time.Now().UTC()
	if *beforeStr != "" {
		t, err := time.Parse(time.RFC3339, *beforeStr)
		if err != nil {
			return fmt.Errorf("invalid -before: %w", err)
		}
		before = t.UTC()
	}

	purged, err := reg.Staging.PurgeExpired(ctx, before)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	logger.Get().Infof("Purged %d expired staged row(s) up to %s", purged, before.Format(time.RFC3339))
	return nil
}

func recompute(ctx context.Context, reg *services.Registry, args []string) error {
	if len(args) != 2 {
		return errors.New(usage)
	}
	userID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	month, err := ledger.ParseMonth(args[1])
	if err != nil {
		return err
	}

	summary, err := reg.Summaries.RecomputeMonth(ctx, userID, month)
	if err != nil {
		return fmt.Errorf("recompute failed: %w", err)
	}
	logger.Get().Infow("Summary recomputed",
		"user_id", summary.UserID,
		"month", ledger.FormatMonth(summary.Month),
		"closing_balance", summary.ClosingBalance.String(),
	)
	return nil
}

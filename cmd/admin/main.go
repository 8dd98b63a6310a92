package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"wealthdash/internal/domain/linkeditem"
	"wealthdash/internal/domain/notification"
	"wealthdash/internal/infrastructure/crypto"
	"wealthdash/internal/infrastructure/firebase"
	"wealthdash/internal/infrastructure/plaid"
	"wealthdash/internal/infrastructure/postgres"
	"wealthdash/internal/interfaces/scheduler"
	"wealthdash/internal/shared/config"
	"wealthdash/internal/shared/telemetry"
)

func main() {
	cmd := &cli.Command{
		Name:  "admin",
		Usage: "Management commands for the wealthdash API",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending database migrations",
				Action: runMigrate,
			},
			{
				Name:  "item-health",
				Usage: "Check linked items with the provider and flag the ones needing re-authentication",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Usage: "User ID(s) to check (comma-separated for multiple)"},
					&cli.BoolFlag{Name: "all", Usage: "Check every user with active items"},
					&cli.IntFlag{Name: "workers", Value: 3, Usage: "Number of concurrent workers"},
					&cli.DurationFlag{Name: "timeout", Value: 30 * time.Minute, Usage: "Timeout for the operation"},
				},
				Action: runItemHealth,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("admin command failed", "error", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := telemetry.NewLogger(os.Stderr, "text", cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func runItemHealth(ctx context.Context, cmd *cli.Command) error {
	userIDs, err := parseUserIDs(cmd.String("user-id"))
	if err != nil {
		return err
	}
	if len(userIDs) == 0 && !cmd.Bool("all") {
		return fmt.Errorf("must specify --user-id or --all")
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	timeout := cmd.Duration("timeout")
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}
	provider, err := plaid.NewClient(plaid.Options{
		ClientID:    cfg.Plaid.ClientID,
		Secret:      cfg.Plaid.Secret,
		Environment: cfg.Plaid.Environment,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	deviceRepo := postgres.NewDeviceTokenRepository(db)
	var messenger notification.Messenger = notification.LogMessenger{Logger: logger}
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, deviceRepo.DeactivateToken, logger)
		if err != nil {
			return err
		}
		messenger = fcm
	}
	notifications := notification.NewService(deviceRepo, messenger, nil, logger)
	items := linkeditem.NewService(postgres.NewLinkedItemRepository(db, encryptor), notifications, logger)

	if cmd.Bool("all") {
		userIDs, err = items.UsersWithActiveItems(ctx)
		if err != nil {
			return err
		}
		logger.Info("found users with active items", "count", len(userIDs))
	}
	if len(userIDs) == 0 {
		logger.Info("no users to process")
		return nil
	}

	workers := int(cmd.Int("workers"))
	logger.Info("starting item health check", "users", len(userIDs), "workers", workers)
	start := time.Now()

	pool := scheduler.NewWorkerPool(workers, 0, len(userIDs), logger)
	pool.Start()
	jobs := make([]scheduler.Job, 0, len(userIDs))
	for _, id := range userIDs {
		jobs = append(jobs, scheduler.NewItemHealthJob(id, provider, items, logger))
	}
	pool.SubmitBatch(jobs)
	pool.ShutdownWithTimeout(timeout)

	logger.Info("item health check completed", "elapsed", time.Since(start))
	return nil
}

func parseUserIDs(raw string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

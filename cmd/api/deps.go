package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"wealthdash/internal/domain/aggregation"
	"wealthdash/internal/domain/dashboard"
	"wealthdash/internal/domain/linkeditem"
	"wealthdash/internal/domain/notification"
	"wealthdash/internal/domain/summary"
	"wealthdash/internal/infrastructure/crypto"
	"wealthdash/internal/infrastructure/firebase"
	"wealthdash/internal/infrastructure/plaid"
	"wealthdash/internal/infrastructure/postgres"
	httphandlers "wealthdash/internal/interfaces/http"
	"wealthdash/internal/shared/auth"
	"wealthdash/internal/shared/config"
	"wealthdash/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	Provider *plaid.Client
	Items    *linkeditem.Service
	Verifier *auth.Verifier

	PlaidHandler   *httphandlers.PlaidHandler
	SummaryHandler *httphandlers.SummaryHandler
	ItemHandler    *httphandlers.ItemHandler
	DeviceHandler  *httphandlers.DeviceHandler
}

// institutionNameFunc adapts a function to notification.InstitutionNamer.
type institutionNameFunc func(ctx context.Context, institutionID string) string

func (f institutionNameFunc) InstitutionName(ctx context.Context, institutionID string) string {
	return f(ctx, institutionID)
}

// NewDependencies connects to the database, runs migrations and builds the
// services and handlers.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	provider, err := plaid.NewClient(plaid.Options{
		ClientID:    cfg.Plaid.ClientID,
		Secret:      cfg.Plaid.Secret,
		Environment: cfg.Plaid.Environment,
		Logger:      logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	policy, err := summary.ParsePolicy(cfg.Summary.InvestmentPolicy)
	if err != nil {
		db.Close()
		return nil, err
	}

	itemRepo := postgres.NewLinkedItemRepository(db, encryptor)
	deviceRepo := postgres.NewDeviceTokenRepository(db)

	var messenger notification.Messenger = notification.LogMessenger{Logger: logger}
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, deviceRepo.DeactivateToken, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		messenger = fcm
		logger.Info("firebase messaging enabled")
	}

	// The notification service names institutions through the fetcher, which
	// depends on the item service, which notifies through the notification
	// service.
	var fetcher *aggregation.Fetcher
	namer := institutionNameFunc(func(ctx context.Context, id string) string {
		return fetcher.InstitutionName(ctx, id)
	})

	notifications := notification.NewService(deviceRepo, messenger, namer, logger)
	if cfg.Firebase.MessagesFile != "" {
		texts, err := messages.Load(cfg.Firebase.MessagesFile)
		if err != nil {
			db.Close()
			return nil, err
		}
		notifications.WithMessages(texts)
	}
	items := linkeditem.NewService(itemRepo, notifications, logger)
	fetcher = aggregation.NewFetcher(provider, items, aggregation.Options{
		CallTimeout:    cfg.Plaid.CallTimeout,
		MaxConcurrency: cfg.Plaid.MaxConcurrency,
		Logger:         logger,
	})
	service := aggregation.NewService(fetcher, items)
	aggregator := dashboard.NewAggregator(summary.NewEngine(policy), logger)

	sources := func(userID uuid.UUID) dashboard.Source { return fetcher.ForUser(userID) }

	return &Dependencies{
		DB:             db,
		Provider:       provider,
		Items:          items,
		Verifier:       auth.NewVerifier(cfg.Supabase.JWTSecret, cfg.Supabase.Audience),
		PlaidHandler:   httphandlers.NewPlaidHandler(service, fetcher, logger),
		SummaryHandler: httphandlers.NewSummaryHandler(aggregator, sources, logger),
		ItemHandler:    httphandlers.NewItemHandler(service, logger),
		DeviceHandler:  httphandlers.NewDeviceHandler(notifications, logger),
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}

package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	httphandlers "wealthdash/internal/interfaces/http"
	"wealthdash/internal/shared/config"
	"wealthdash/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(cfg.TLS.Enabled))
	r.Use(middleware.CORS(cfg.Server.AllowedHosts))
	if cfg.Telemetry.Enabled {
		r.Use(middleware.Instrument)
	}

	r.Get("/health", httphandlers.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Verifier))

		r.Route("/plaid", func(r chi.Router) {
			r.Post("/link-token", deps.PlaidHandler.HandleLinkToken)
			r.Post("/exchange-token", deps.PlaidHandler.HandleExchangeToken)
			r.Get("/accounts", deps.PlaidHandler.HandleAccounts)
			r.Get("/transactions", deps.PlaidHandler.HandleTransactions)
			r.Get("/investments", deps.PlaidHandler.HandleInvestments)
			r.Get("/liabilities", deps.PlaidHandler.HandleLiabilities)
		})

		r.Get("/summary", deps.SummaryHandler.HandleSummary)

		r.Get("/items", deps.ItemHandler.HandleList)
		r.Delete("/items/{itemID}", deps.ItemHandler.HandleDelete)

		r.Post("/devices", deps.DeviceHandler.HandleRegister)
	})

	return r
}

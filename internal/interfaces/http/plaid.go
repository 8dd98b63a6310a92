package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wealthdash/internal/domain/aggregation"
	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/linkeditem"
)

// LinkService creates link tokens and exchanges public tokens.
type LinkService interface {
	CreateLinkToken(ctx context.Context, userID uuid.UUID) (*finance.LinkToken, error)
	ExchangePublicToken(ctx context.Context, userID uuid.UUID, publicToken string) ([]finance.Account, error)
}

// DataFetcher returns the user's data across every active item.
type DataFetcher interface {
	Accounts(ctx context.Context, userID uuid.UUID) ([]finance.Account, error)
	Transactions(ctx context.Context, userID uuid.UUID, window finance.DateRange) ([]finance.Transaction, error)
	Investments(ctx context.Context, userID uuid.UUID) (*finance.InvestmentBundle, error)
	Liabilities(ctx context.Context, userID uuid.UUID) (*finance.LiabilityBundle, error)
}

// PlaidHandler serves the /api/plaid endpoints.
type PlaidHandler struct {
	links   LinkService
	fetcher DataFetcher
	logger  *slog.Logger
	now     func() time.Time
}

func NewPlaidHandler(links LinkService, fetcher DataFetcher, logger *slog.Logger) *PlaidHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaidHandler{links: links, fetcher: fetcher, logger: logger, now: time.Now}
}

type exchangeTokenRequest struct {
	PublicToken string `json:"public_token"`
}

type exchangeTokenResponse struct {
	Success  bool              `json:"success"`
	Accounts []finance.Account `json:"accounts"`
}

func (h *PlaidHandler) HandleLinkToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	token, err := h.links.CreateLinkToken(r.Context(), userID)
	if err != nil {
		internalError(w, r, h.logger, "failed to create link token", err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *PlaidHandler) HandleExchangeToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req exchangeTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accounts, err := h.links.ExchangePublicToken(r.Context(), userID, req.PublicToken)
	switch {
	case errors.Is(err, aggregation.ErrMissingPublicToken):
		writeError(w, http.StatusBadRequest, "missing_public_token")
		return
	case errors.Is(err, linkeditem.ErrItemAlreadyLinked):
		writeError(w, http.StatusConflict, "item_already_linked")
		return
	case err != nil:
		internalError(w, r, h.logger, "failed to exchange public token", err)
		return
	}

	if accounts == nil {
		accounts = []finance.Account{}
	}
	writeJSON(w, http.StatusOK, exchangeTokenResponse{Success: true, Accounts: accounts})
}

func (h *PlaidHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.fetcher.Accounts(r.Context(), userID)
	if err != nil {
		internalError(w, r, h.logger, "failed to fetch accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *PlaidHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	window, ok := h.window(w, r)
	if !ok {
		return
	}

	txns, err := h.fetcher.Transactions(r.Context(), userID, window)
	if err != nil {
		internalError(w, r, h.logger, "failed to fetch transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (h *PlaidHandler) HandleInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	bundle, err := h.fetcher.Investments(r.Context(), userID)
	if err != nil {
		internalError(w, r, h.logger, "failed to fetch investments", err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (h *PlaidHandler) HandleLiabilities(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	bundle, err := h.fetcher.Liabilities(r.Context(), userID)
	if err != nil {
		internalError(w, r, h.logger, "failed to fetch liabilities", err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (h *PlaidHandler) window(w http.ResponseWriter, r *http.Request) (finance.DateRange, bool) {
	return parseWindow(w, r, h.now())
}

// parseWindow reads start_date and end_date, writing a 400 on bad input.
func parseWindow(w http.ResponseWriter, r *http.Request, now time.Time) (finance.DateRange, bool) {
	q := r.URL.Query()
	window, err := finance.ParseDateRange(q.Get("start_date"), q.Get("end_date"), now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date_range")
		return finance.DateRange{}, false
	}
	return window, true
}

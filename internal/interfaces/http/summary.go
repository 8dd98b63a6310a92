package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"wealthdash/internal/domain/dashboard"
	"wealthdash/internal/domain/finance"
)

// PassRunner runs one aggregation pass, joining any pass already in flight
// for the same key.
type PassRunner interface {
	Run(ctx context.Context, key string, src dashboard.Source, window finance.DateRange) (*dashboard.Snapshot, error)
}

// SourceFactory binds a data source to one user.
type SourceFactory func(userID uuid.UUID) dashboard.Source

// SummaryHandler serves GET /api/summary.
type SummaryHandler struct {
	runner PassRunner
	source SourceFactory
	logger *slog.Logger
	now    func() time.Time
}

func NewSummaryHandler(runner PassRunner, source SourceFactory, logger *slog.Logger) *SummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryHandler{runner: runner, source: source, logger: logger, now: time.Now}
}

func (h *SummaryHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	window, ok := parseWindow(w, r, h.now())
	if !ok {
		return
	}

	snap, err := h.runner.Run(r.Context(), userID.String(), h.source(userID), window)
	if err != nil {
		internalError(w, r, h.logger, "failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Summary)
}

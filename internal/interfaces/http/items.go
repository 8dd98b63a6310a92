package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wealthdash/internal/domain/linkeditem"
)

// ItemService lists and removes a user's linked institutions.
type ItemService interface {
	Items(ctx context.Context, userID uuid.UUID) ([]*linkeditem.LinkedItem, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, itemID string) error
}

type ItemHandler struct {
	items  ItemService
	logger *slog.Logger
}

func NewItemHandler(items ItemService, logger *slog.Logger) *ItemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemHandler{items: items, logger: logger}
}

type itemResponse struct {
	ItemID        string            `json:"item_id"`
	InstitutionID string            `json:"institution_id"`
	Status        linkeditem.Status `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.items.Items(r.Context(), userID)
	if err != nil {
		internalError(w, r, h.logger, "failed to list items", err)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, itemResponse{
			ItemID:        it.ItemID,
			InstitutionID: it.InstitutionID,
			Status:        it.Status,
			CreatedAt:     it.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resp})
}

func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	err := h.items.RemoveItem(r.Context(), userID, itemID)
	switch {
	case errors.Is(err, linkeditem.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found")
	case errors.Is(err, linkeditem.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "item_already_removed")
	case err != nil:
		internalError(w, r, h.logger, "failed to remove item", err)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"wealthdash/internal/domain/notification"
)

// DeviceRegistrar stores FCM device tokens.
type DeviceRegistrar interface {
	RegisterDevice(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error)
}

type DeviceHandler struct {
	devices DeviceRegistrar
	logger  *slog.Logger
}

func NewDeviceHandler(devices DeviceRegistrar, logger *slog.Logger) *DeviceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceHandler{devices: devices, logger: logger}
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *DeviceHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err := h.devices.RegisterDevice(r.Context(), notification.RegisterDeviceParams{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
	})
	switch {
	case errors.Is(err, notification.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "invalid_token")
	case errors.Is(err, notification.ErrInvalidPlatform):
		writeError(w, http.StatusBadRequest, "invalid_platform")
	case err != nil:
		internalError(w, r, h.logger, "failed to register device", err)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/api/response"
	"github.com/ridepool/ridepool/internal/notify"
)

// DeviceHandler handles device token registration.
type DeviceHandler struct {
	tokens notify.TokenStore
	logger zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(tokens notify.TokenStore, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{tokens: tokens, logger: logger}
}

type registerDeviceTokenRequest struct {
	Token string `json:"token"`
}

// RegisterDeviceToken handles PUT /v1/me/device-token. Rider and driver apps
// call this on login so offer and verification pushes can reach them.
func (h *DeviceHandler) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		response.BadRequest(w, r, "a device token is required", nil)
		return
	}

	userID := GetUserID(r.Context())
	if err := h.tokens.SetToken(r.Context(), userID, req.Token); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store device token")
		response.InternalError(w, r, "failed to register device token")
		return
	}

	response.NoContent(w, r)
}

// Package handler provides HTTP handlers for the Ridepool API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/api/models"
	"github.com/ridepool/ridepool/internal/api/response"
	"github.com/ridepool/ridepool/internal/dispatch"
	"github.com/ridepool/ridepool/internal/notify"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/internal/verification"
)

// TripHandler handles trip endpoints.
type TripHandler struct {
	dispatcher   *dispatch.Orchestrator
	trips        trip.Repository
	tokens       notify.TokenStore
	notifier     notify.Notifier
	verification *verification.Service
	logger       zerolog.Logger
}

// TripHandlerConfig holds the trip handler's dependencies.
type TripHandlerConfig struct {
	Dispatcher   *dispatch.Orchestrator
	Trips        trip.Repository
	Tokens       notify.TokenStore
	Notifier     notify.Notifier
	Verification *verification.Service
	Logger       zerolog.Logger
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(cfg TripHandlerConfig) *TripHandler {
	return &TripHandler{
		dispatcher:   cfg.Dispatcher,
		trips:        cfg.Trips,
		tokens:       cfg.Tokens,
		notifier:     cfg.Notifier,
		verification: cfg.Verification,
		logger:       cfg.Logger,
	}
}

// CreateTrip handles POST /v1/trips - dispatch a new trip for the caller.
// The call blocks while drivers are searched and offered; it returns once a
// driver accepts or the search is exhausted.
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	riderID := GetUserID(r.Context())

	var req models.CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	t, err := h.dispatcher.Dispatch(r.Context(), req.ToCreateRequest(riderID))
	switch {
	case err == nil:
		response.Created(w, r, "/v1/trips/"+t.ID, models.TripFromDomain(t))
	case errors.Is(err, dispatch.ErrInvalidRequest):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, dispatch.ErrNoDriverAvailable):
		response.Conflict(w, r, "no driver available for this trip")
	default:
		h.logger.Error().Err(err).Str("rider_id", riderID).Msg("dispatch failed")
		response.InternalError(w, r, "failed to dispatch trip")
	}
}

// GetTrip handles GET /v1/trips/{tripId}. Only the trip's rider or matched
// driver may read it; everyone else sees 404.
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	t, ok := h.authorizedTrip(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.TripFromDomain(t))
}

// SendVerificationCode handles POST /v1/trips/{tripId}/verification-code.
// The matched driver requests a one-time code; it is pushed to the rider's
// device and the rider reads it back to the driver.
func (h *TripHandler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	t, ok := h.authorizedTrip(w, r)
	if !ok {
		return
	}
	if t.Driver == nil || t.Driver.ID != GetUserID(r.Context()) {
		response.Unauthorized(w, r, "only the trip's driver may request a verification code")
		return
	}

	riderToken, err := h.tokens.Token(r.Context(), t.RiderID)
	if errors.Is(err, notify.ErrNoToken) {
		response.Conflict(w, r, "rider has no notification token")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("trip_id", t.ID).Msg("failed to resolve rider token")
		response.InternalError(w, r, "failed to send verification code")
		return
	}

	code := h.verification.Code(t.ID)
	if err := h.notifier.Send(r.Context(), riderToken, notify.VerificationCode(code)); err != nil {
		h.logger.Error().Err(err).Str("trip_id", t.ID).Msg("failed to push verification code")
		response.InternalError(w, r, "failed to send verification code")
		return
	}

	response.NoContent(w, r)
}

// StartTrip handles POST /v1/trips/{tripId}/start. The matched driver
// submits the code the rider read out; on success the trip moves to ACTIVE.
func (h *TripHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	t, ok := h.authorizedTrip(w, r)
	if !ok {
		return
	}
	if t.Driver == nil || t.Driver.ID != GetUserID(r.Context()) {
		response.Unauthorized(w, r, "only the trip's driver may start the trip")
		return
	}
	if t.Status != trip.StatusMatched {
		response.Conflict(w, r, "trip is not awaiting start")
		return
	}

	var req models.StartTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if err := h.verification.Verify(t.ID, req.VerificationCode); err != nil {
		response.BadRequest(w, r, "invalid verification code", nil)
		return
	}

	if err := h.trips.SetStatus(r.Context(), t.ID, trip.StatusActive); err != nil {
		h.logger.Error().Err(err).Str("trip_id", t.ID).Msg("failed to activate trip")
		response.InternalError(w, r, "failed to start trip")
		return
	}
	t.Status = trip.StatusActive

	response.JSON(w, r, http.StatusOK, models.TripFromDomain(t))
}

// authorizedTrip loads the trip from the URL and checks that the caller is
// its rider or matched driver. Unknown trips and unauthorized callers both
// get 404 so trip IDs cannot be probed.
func (h *TripHandler) authorizedTrip(w http.ResponseWriter, r *http.Request) (*trip.Trip, bool) {
	tripID := chi.URLParam(r, "tripId")
	t, err := h.trips.Get(r.Context(), tripID)
	if errors.Is(err, trip.ErrTripNotFound) {
		response.NotFound(w, r, "trip not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error().Err(err).Str("trip_id", tripID).Msg("failed to load trip")
		response.InternalError(w, r, "failed to load trip")
		return nil, false
	}

	userID := GetUserID(r.Context())
	if t.RiderID != userID && (t.Driver == nil || t.Driver.ID != userID) {
		response.NotFound(w, r, "trip not found")
		return nil, false
	}
	return t, true
}

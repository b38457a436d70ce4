// Package worker consumes driver-app events and applies them to the
// dispatch stores: offer accept/decline responses resolve in-flight
// negotiations, location reports keep the geo index current.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/offer"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// Event types accepted by the relay.
const (
	EventOfferResponse  = "offer_response"
	EventDriverLocation = "driver_location"
	EventDriverOffline  = "driver_offline"
)

// Offer response actions.
const (
	ActionAccept  = "ACCEPT"
	ActionDecline = "DECLINE"
)

// ErrUnknownEvent is returned for event types the relay does not handle.
// Such messages are acked rather than redelivered.
var ErrUnknownEvent = errors.New("unknown event type")

// Event is the envelope every driver-app message carries.
type Event struct {
	Type string `json:"type"`

	// offer_response fields.
	TripID   string `json:"trip_id,omitempty"`
	DriverID string `json:"driver_id,omitempty"`
	Action   string `json:"action,omitempty"`

	// driver_location / driver_offline fields.
	Lat         float64 `json:"lat,omitempty"`
	Lng         float64 `json:"lng,omitempty"`
	VehicleType string  `json:"vehicle_type,omitempty"`
}

// Relay applies driver-app events to the offer store and geo index.
type Relay struct {
	offers offer.Store
	index  driver.GeoIndex
	logger zerolog.Logger
}

// RelayConfig holds the relay's dependencies.
type RelayConfig struct {
	Offers offer.Store
	Index  driver.GeoIndex
	Logger zerolog.Logger
}

// NewRelay creates a new relay.
func NewRelay(cfg RelayConfig) *Relay {
	return &Relay{
		offers: cfg.Offers,
		index:  cfg.Index,
		logger: cfg.Logger,
	}
}

// Apply parses and handles one event payload.
func (r *Relay) Apply(ctx context.Context, data []byte) error {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("parse event: %w", err)
	}

	switch ev.Type {
	case EventOfferResponse:
		return r.applyOfferResponse(ctx, ev)
	case EventDriverLocation:
		return r.applyDriverLocation(ctx, ev)
	case EventDriverOffline:
		return r.applyDriverOffline(ctx, ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

func (r *Relay) applyOfferResponse(ctx context.Context, ev Event) error {
	logger := r.logger.With().
		Str("trip_id", ev.TripID).
		Str("driver_id", ev.DriverID).
		Str("action", ev.Action).
		Logger()

	switch ev.Action {
	case ActionAccept:
		err := r.offers.Accept(ctx, ev.TripID, ev.DriverID)
		if errors.Is(err, offer.ErrOfferNotFound) {
			// The offer timed out or was withdrawn before the response
			// arrived. Nothing to resolve.
			logger.Info().Msg("accept for expired offer ignored")
			return nil
		}
		if err != nil {
			return fmt.Errorf("accept offer: %w", err)
		}
		logger.Info().Msg("offer accepted")
		return nil
	case ActionDecline:
		if err := r.offers.Delete(ctx, ev.TripID, ev.DriverID); err != nil {
			return fmt.Errorf("decline offer: %w", err)
		}
		logger.Info().Msg("offer declined")
		return nil
	default:
		return fmt.Errorf("%w: offer action %q", ErrUnknownEvent, ev.Action)
	}
}

func (r *Relay) applyDriverLocation(ctx context.Context, ev Event) error {
	vehicleType, err := trip.ParseVehicleType(ev.VehicleType)
	if err != nil {
		return fmt.Errorf("driver location: %w", err)
	}
	loc := polyline.Coordinate{Lat: ev.Lat, Lng: ev.Lng}
	if err := r.index.SetLocation(ctx, ev.DriverID, loc, vehicleType); err != nil {
		return fmt.Errorf("update driver location: %w", err)
	}
	return nil
}

func (r *Relay) applyDriverOffline(ctx context.Context, ev Event) error {
	vehicleType, err := trip.ParseVehicleType(ev.VehicleType)
	if err != nil {
		return fmt.Errorf("driver offline: %w", err)
	}
	if err := r.index.Remove(ctx, ev.DriverID, vehicleType); err != nil {
		return fmt.Errorf("remove driver: %w", err)
	}
	return nil
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/geo"
	"github.com/ridepool/ridepool/internal/offer"
	"github.com/ridepool/ridepool/internal/trip"
)

// Search radius bounds, in kilometres. The effective ceiling for a given
// trip is the lesser of MaxRadiusKm and half the pickup-to-dropoff
// great-circle distance, but never below the starting radius.
const (
	DefaultStartRadiusKm = 0.5
	DefaultMaxRadiusKm   = 2.0
)

// Dispatch errors.
var (
	// ErrNoDriverAvailable: the search exhausted the maximum radius without
	// an accepted offer.
	ErrNoDriverAvailable = errors.New("no driver available")

	// ErrInvalidRequest wraps a request validation failure.
	ErrInvalidRequest = errors.New("invalid trip request")
)

// Negotiator runs the timed offer protocol against one candidate.
type Negotiator interface {
	Offer(ctx context.Context, t *trip.Trip, c *driver.Candidate) (offer.Outcome, error)
}

// OrchestratorConfig carries the orchestrator's dependencies.
type OrchestratorConfig struct {
	Trips      trip.Repository
	Drivers    driver.Repository
	Index      driver.GeoIndex
	Negotiator Negotiator
	Logger     zerolog.Logger

	// Metrics is optional; a nil value disables instrumentation.
	Metrics *Metrics

	// StartRadiusKm and MaxRadiusKm default to the package constants when
	// zero.
	StartRadiusKm float64
	MaxRadiusKm   float64
}

// Orchestrator drives a trip request from validation through search, offer
// and finalization. One Dispatch call owns the full lifecycle of a single
// trip attempt; the orchestrator itself is stateless and safe for concurrent
// use.
type Orchestrator struct {
	trips       trip.Repository
	drivers     driver.Repository
	index       driver.GeoIndex
	negotiator  Negotiator
	logger      zerolog.Logger
	metrics     *Metrics
	startRadius float64
	maxRadius   float64
}

// NewOrchestrator creates a dispatch orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.StartRadiusKm <= 0 {
		cfg.StartRadiusKm = DefaultStartRadiusKm
	}
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = DefaultMaxRadiusKm
	}
	return &Orchestrator{
		trips:       cfg.Trips,
		drivers:     cfg.Drivers,
		index:       cfg.Index,
		negotiator:  cfg.Negotiator,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		startRadius: cfg.StartRadiusKm,
		maxRadius:   cfg.MaxRadiusKm,
	}
}

// Dispatch validates the request, persists a pending trip and runs the
// expanding-radius search until a driver accepts or the radius ceiling is
// exhausted. On success the returned trip is MATCHED with driver, vehicle
// and route recorded; on failure the pending trip is removed before the
// error is returned.
func (o *Orchestrator) Dispatch(ctx context.Context, req *trip.CreateRequest) (*trip.Trip, error) {
	start := time.Now()
	t, err := o.dispatch(ctx, req)
	o.metrics.RecordDispatch(ctx, time.Since(start), dispatchResult(err))
	return t, err
}

func dispatchResult(err error) string {
	switch {
	case err == nil:
		return "matched"
	case errors.Is(err, ErrNoDriverAvailable):
		return "no_driver"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, req *trip.CreateRequest) (*trip.Trip, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := time.Now().UTC()
	t := &trip.Trip{
		ID:            "trp_" + uuid.New().String()[:22],
		RiderID:       req.RiderID,
		Type:          req.Type,
		VehicleType:   req.VehicleType,
		PaymentMethod: req.PaymentMethod,
		Passengers:    req.Passengers,
		Status:        trip.StatusPending,
		Pickup:        req.Pickup,
		DropOff:       req.DropOff,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.trips.CreatePending(ctx, t); err != nil {
		return nil, fmt.Errorf("create pending trip: %w", err)
	}

	logger := o.logger.With().Str("trip_id", t.ID).Str("rider_id", t.RiderID).Logger()

	search, err := NewSearch(SearchConfig{
		Trip:          t,
		Ignore:        req.IgnoreDrivers,
		Index:         o.index,
		Logger:        logger,
		StartRadiusKm: o.startRadius,
	})
	if err != nil {
		o.abandon(t.ID, logger)
		return nil, fmt.Errorf("build driver search: %w", err)
	}

	maxRadius := o.effectiveMaxRadiusKm(t)
	for {
		if err := ctx.Err(); err != nil {
			o.abandon(t.ID, logger)
			return nil, err
		}

		candidate, err := search.FindBestCandidate(ctx)
		if err != nil {
			o.abandon(t.ID, logger)
			return nil, fmt.Errorf("search drivers: %w", err)
		}
		if candidate == nil {
			if search.RadiusKm() >= maxRadius {
				logger.Info().Float64("max_radius_km", maxRadius).Msg("dispatch exhausted search radius")
				o.abandon(t.ID, logger)
				return nil, ErrNoDriverAvailable
			}
			search.ExpandRadius()
			continue
		}

		outcome, err := o.negotiator.Offer(ctx, t, candidate)
		if err != nil {
			o.abandon(t.ID, logger)
			return nil, fmt.Errorf("offer trip to driver %s: %w", candidate.ID, err)
		}
		logger.Info().
			Str("driver_id", candidate.ID).
			Str("outcome", outcome.String()).
			Float64("radius_km", search.RadiusKm()).
			Msg("offer resolved")
		o.metrics.RecordOffer(ctx, outcome.String())

		if outcome == offer.OutcomeAccepted {
			if err := o.finalize(ctx, t, candidate); err != nil {
				// The negotiator reserved seats on accept; give them back
				// before the trip is abandoned.
				o.releaseCapacity(candidate.ID, t.Passengers, logger)
				o.abandon(t.ID, logger)
				return nil, err
			}
			return t, nil
		}
		// Any non-accept outcome excludes the driver for the rest of this
		// dispatch; the search stays at the current radius.
		search.Skip(candidate.ID)
	}
}

// effectiveMaxRadiusKm caps the search at half the trip's great-circle
// length, within [startRadius, maxRadius].
func (o *Orchestrator) effectiveMaxRadiusKm(t *trip.Trip) float64 {
	half := geo.Haversine(t.Pickup.Coordinates, t.DropOff.Coordinates) / 2 / 1000
	max := o.maxRadius
	if half < max {
		max = half
	}
	if max < o.startRadius {
		max = o.startRadius
	}
	return max
}

// finalize records the accepted match on the trip and splices the trip into
// the driver's current path. The candidate's capacity reservation already
// happened inside the negotiation.
func (o *Orchestrator) finalize(ctx context.Context, t *trip.Trip, c *driver.Candidate) error {
	drv, veh, err := o.drivers.GetWithVehicle(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load driver %s: %w", c.ID, err)
	}

	m := trip.Match{
		Driver:       trip.DriverInfo{ID: drv.ID, DisplayName: drv.DisplayName},
		Vehicle:      trip.VehicleInfo{ID: veh.ID, Plate: veh.Plate, Description: veh.Description, VehicleType: t.VehicleType},
		TripPolyline: c.Route.TripPolyline,
	}
	if w := c.Route.PickupWalk; w != nil {
		m.PickupWalk = &trip.Walk{Polyline: w.Polyline, LengthMeters: w.LengthMeters}
	}
	if w := c.Route.DropoffWalk; w != nil {
		m.DropoffWalk = &trip.Walk{Polyline: w.Polyline, LengthMeters: w.LengthMeters}
	}
	if err := o.trips.Finalize(ctx, t.ID, m); err != nil {
		return fmt.Errorf("finalize trip: %w", err)
	}

	if err := o.drivers.UpdateCurrentPath(ctx, c.ID, c.Route.DriverPolyline); err != nil {
		return fmt.Errorf("update driver path: %w", err)
	}
	if err := o.index.SetCurrentPath(ctx, c.ID, c.Route.DriverPolyline); err != nil {
		// The persisted path is authoritative; a stale index entry only
		// costs later searches a recomputation.
		o.logger.Warn().Err(err).Str("driver_id", c.ID).Msg("failed to refresh driver path in geo index")
	}

	t.Status = trip.StatusMatched
	t.TripPolyline = m.TripPolyline
	t.PickupWalk = m.PickupWalk
	t.DropoffWalk = m.DropoffWalk
	t.Driver = &m.Driver
	t.Vehicle = &m.Vehicle
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// releaseCapacity restores seats reserved during a negotiation whose match
// could not be finalized. Best-effort with retries, on a detached context.
func (o *Orchestrator) releaseCapacity(driverID string, passengers int, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 0

	operation := func() error {
		return o.drivers.ReleaseCapacity(ctx, driverID, passengers)
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		logger.Error().Err(err).
			Str("driver_id", driverID).
			Int("passengers", passengers).
			Msg("failed to release reserved capacity")
	}
}

// abandon removes a pending trip that will never match. Runs on a detached
// context so cleanup survives caller cancellation.
func (o *Orchestrator) abandon(tripID string, logger zerolog.Logger) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.trips.Delete(cleanupCtx, tripID); err != nil && !errors.Is(err, trip.ErrTripNotFound) {
		logger.Error().Err(err).Msg("failed to delete abandoned trip")
	}
}

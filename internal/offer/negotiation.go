package offer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/notify"
	"github.com/ridepool/ridepool/internal/trip"
)

// DefaultTTL is how long a driver has to answer an offer.
const DefaultTTL = 30 * time.Second

// Outcome is the resolution of one offer negotiation.
type Outcome int

// Negotiation outcomes. Everything except OutcomeAccepted sends the driver
// to the dispatch skip-list.
const (
	// OutcomeAccepted: the driver accepted before the TTL lapsed.
	OutcomeAccepted Outcome = iota
	// OutcomeRejected: the driver explicitly declined.
	OutcomeRejected
	// OutcomeTimedOut: the TTL lapsed without an answer.
	OutcomeTimedOut
	// OutcomeIneligible: the driver's remaining capacity cannot seat the
	// trip; no offer was ever made.
	OutcomeIneligible
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeIneligible:
		return "ineligible"
	}
	return "unknown"
}

// NegotiatorConfig holds configuration for the negotiator.
type NegotiatorConfig struct {
	Drivers  driver.Repository
	Offers   Store
	Notifier notify.Notifier
	Logger   zerolog.Logger

	// TTL is the driver's answer deadline (default: DefaultTTL).
	TTL time.Duration
}

// Negotiator runs the timed offer/accept protocol with transactional
// capacity control.
type Negotiator struct {
	drivers  driver.Repository
	offers   Store
	notifier notify.Notifier
	logger   zerolog.Logger
	ttl      time.Duration
}

// NewNegotiator creates a negotiator.
func NewNegotiator(cfg NegotiatorConfig) *Negotiator {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Negotiator{
		drivers:  cfg.Drivers,
		offers:   cfg.Offers,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		ttl:      ttl,
	}
}

// Offer reserves the driver's capacity, notifies the driver and waits for an
// answer until the TTL lapses or ctx is cancelled. Capacity and the offer
// record are released on every non-accept path, cancellation included.
func (n *Negotiator) Offer(ctx context.Context, t *trip.Trip, c *driver.Candidate) (Outcome, error) {
	logger := n.logger.With().
		Str("trip_id", t.ID).
		Str("driver_id", c.ID).
		Logger()

	reserved, err := n.drivers.ReserveCapacity(ctx, c.ID, t.Passengers)
	if err != nil {
		return OutcomeIneligible, fmt.Errorf("reserve capacity: %w", err)
	}
	if !reserved {
		logger.Debug().Int("passengers", t.Passengers).Msg("driver capacity insufficient")
		return OutcomeIneligible, nil
	}

	// Subscribe before creating the record so the accept/decline event
	// cannot slip between the two.
	events, cancelSub, err := n.offers.Subscribe(ctx, t.ID, c.ID)
	if err != nil {
		n.releaseCapacity(c.ID, t.Passengers)
		return OutcomeIneligible, fmt.Errorf("subscribe offer: %w", err)
	}
	defer cancelSub()

	record := Offer{
		TripID:         t.ID,
		DriverID:       c.ID,
		Passengers:     t.Passengers,
		TripPolyline:   c.Route.TripPolyline,
		DriverPolyline: c.Route.DriverPolyline,
		ExpiresAt:      time.Now().Add(n.ttl),
	}
	if err := n.offers.Create(ctx, record, n.ttl); err != nil {
		n.releaseCapacity(c.ID, t.Passengers)
		return OutcomeIneligible, fmt.Errorf("create offer: %w", err)
	}

	n.sendOfferPush(ctx, c.ID, logger)

	timer := time.NewTimer(n.ttl)
	defer timer.Stop()

	for {
		select {
		case ev := <-events:
			switch {
			case ev.Accepted:
				n.deleteOffer(t.ID, c.ID)
				logger.Info().Msg("driver accepted trip offer")
				return OutcomeAccepted, nil
			case ev.Deleted:
				n.releaseCapacity(c.ID, t.Passengers)
				logger.Info().Msg("driver declined trip offer")
				return OutcomeRejected, nil
			}
			// Spurious event, keep waiting.

		case <-timer.C:
			n.deleteOffer(t.ID, c.ID)
			n.releaseCapacity(c.ID, t.Passengers)
			logger.Info().Dur("ttl", n.ttl).Msg("trip offer timed out")
			return OutcomeTimedOut, nil

		case <-ctx.Done():
			n.deleteOffer(t.ID, c.ID)
			n.releaseCapacity(c.ID, t.Passengers)
			logger.Info().Msg("offer wait aborted by caller")
			return OutcomeTimedOut, ctx.Err()
		}
	}
}

// sendOfferPush notifies the driver best-effort; failure never aborts the
// negotiation.
func (n *Negotiator) sendOfferPush(ctx context.Context, driverID string, logger zerolog.Logger) {
	token, err := n.drivers.NotificationToken(ctx, driverID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch notification token")
		return
	}
	if token == "" {
		logger.Debug().Msg("driver has no notification token")
		return
	}
	if err := n.notifier.Send(ctx, token, notify.NewTripOffer()); err != nil {
		logger.Warn().Err(err).Msg("failed to push trip offer")
	}
}

// deleteOffer removes a resolved offer record. Cleanup runs on a detached
// context so it completes even when the caller was cancelled.
func (n *Negotiator) deleteOffer(tripID, driverID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.offers.Delete(ctx, tripID, driverID); err != nil {
		n.logger.Warn().Err(err).
			Str("trip_id", tripID).
			Str("driver_id", driverID).
			Msg("failed to delete offer record")
	}
}

// releaseCapacity restores reserved seats best-effort, retrying transient
// store failures.
func (n *Negotiator) releaseCapacity(driverID string, passengers int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 0

	operation := func() error {
		return n.drivers.ReleaseCapacity(ctx, driverID, passengers)
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)); err != nil {
		n.logger.Error().Err(err).
			Str("driver_id", driverID).
			Int("passengers", passengers).
			Msg("failed to release reserved capacity")
	}
}

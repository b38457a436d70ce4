// Package offer implements the timed offer/accept negotiation between a
// dispatch attempt and a candidate driver.
package offer

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	ErrOfferNotFound = errors.New("offer not found")
)

// Offer is the ephemeral record proposing a trip to a driver. It exists from
// negotiation start until the negotiation resolves or its TTL lapses.
type Offer struct {
	TripID         string
	DriverID       string
	Passengers     int
	TripPolyline   string
	DriverPolyline string
	ExpiresAt      time.Time

	// Accepted is set once the driver accepts. Resolved records are
	// normally deleted right away, so a reader mostly sees it on records a
	// crashed dispatcher left behind.
	Accepted bool
}

// Event is a change to an offer record.
type Event struct {
	// Accepted is set when the driver accepted the offer.
	Accepted bool
	// Deleted is set when the offer was removed without acceptance, which is
	// an explicit decline.
	Deleted bool
}

// Store persists offer records and notifies subscribers when they change.
type Store interface {
	// Create stores a new offer with the given TTL.
	Create(ctx context.Context, o Offer, ttl time.Duration) error

	// Accept marks the offer accepted and notifies subscribers.
	Accept(ctx context.Context, tripID, driverID string) error

	// Delete removes the offer and notifies subscribers of a decline.
	// Deleting an absent offer is not an error.
	Delete(ctx context.Context, tripID, driverID string) error

	// Subscribe returns a channel of change events for the offer, together
	// with a cancel function releasing the subscription. Subscribing before
	// Create guarantees no event is missed.
	Subscribe(ctx context.Context, tripID, driverID string) (<-chan Event, func(), error)
}

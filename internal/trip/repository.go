package trip

import "context"

// Match carries the outcome of a successful dispatch.
type Match struct {
	Driver       DriverInfo
	Vehicle      VehicleInfo
	TripPolyline string
	PickupWalk   *Walk
	DropoffWalk  *Walk
}

// Repository defines trip persistence.
type Repository interface {
	// CreatePending stores a new trip in PENDING status.
	CreatePending(ctx context.Context, t *Trip) error

	// Get retrieves a trip by ID. Returns ErrTripNotFound if absent.
	Get(ctx context.Context, id string) (*Trip, error)

	// Finalize records the matched driver, vehicle and route on a pending
	// trip and moves it to MATCHED.
	Finalize(ctx context.Context, id string, m Match) error

	// SetStatus transitions a trip's lifecycle status.
	SetStatus(ctx context.Context, id string, status Status) error

	// Delete removes a trip. Used to clean up pending trips that found no
	// driver.
	Delete(ctx context.Context, id string) error
}

package driver

import "context"

// Repository defines the driver record store. Capacity operations carry the
// transactional read-check-write semantics that concurrent dispatchers rely
// on; the dispatch core performs no locking of its own.
type Repository interface {
	// ReserveCapacity atomically checks that the driver's remaining capacity
	// covers passengers and decrements it. It reports false, without error,
	// when capacity is insufficient.
	ReserveCapacity(ctx context.Context, id string, passengers int) (bool, error)

	// ReleaseCapacity returns previously reserved seats to the driver.
	ReleaseCapacity(ctx context.Context, id string, passengers int) error

	// UpdateCurrentPath stores the driver's new encoded path after a trip is
	// spliced in.
	UpdateCurrentPath(ctx context.Context, id string, encodedPath string) error

	// NotificationToken returns the driver's push token, or empty when the
	// driver has none registered.
	NotificationToken(ctx context.Context, id string) (string, error)

	// GetWithVehicle returns the driver record and its registered vehicle.
	GetWithVehicle(ctx context.Context, id string) (*Driver, *Vehicle, error)
}

package driver

import (
	"context"

	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// GeoIndex answers "which drivers of this vehicle type are near this point".
// Implementations may over-return at the bounding-box level; callers must
// re-filter by exact distance.
type GeoIndex interface {
	// QueryNear returns drivers of the given vehicle type within roughly
	// radiusKm of center.
	QueryNear(ctx context.Context, center polyline.Coordinate, radiusKm float64, vehicleType trip.VehicleType) ([]Nearby, error)

	// SetLocation records a driver's current location in the index.
	SetLocation(ctx context.Context, id string, loc polyline.Coordinate, vehicleType trip.VehicleType) error

	// SetCurrentPath records a driver's current encoded path. An empty path
	// marks the driver idle.
	SetCurrentPath(ctx context.Context, id string, encodedPath string) error

	// Remove takes a driver out of the index.
	Remove(ctx context.Context, id string, vehicleType trip.VehicleType) error
}

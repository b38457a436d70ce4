package driver

import (
	"context"
	"sync"

	"github.com/ridepool/ridepool/internal/geo"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/pkg/polyline"
)

// InMemoryGeoIndex is an in-memory implementation of GeoIndex.
// This is intended for testing. Production should use RedisGeoIndex.
type InMemoryGeoIndex struct {
	mu      sync.Mutex
	entries map[string]*geoEntry
}

type geoEntry struct {
	location    polyline.Coordinate
	vehicleType trip.VehicleType
	encodedPath string
}

// NewInMemoryGeoIndex creates a new in-memory geospatial index.
func NewInMemoryGeoIndex() *InMemoryGeoIndex {
	return &InMemoryGeoIndex{entries: make(map[string]*geoEntry)}
}

// QueryNear returns drivers of the given vehicle type within radiusKm of
// center, by exact great-circle distance.
func (x *InMemoryGeoIndex) QueryNear(_ context.Context, center polyline.Coordinate, radiusKm float64, vehicleType trip.VehicleType) ([]Nearby, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var results []Nearby
	for id, e := range x.entries {
		if e.vehicleType != vehicleType {
			continue
		}
		if geo.Haversine(e.location, center) > radiusKm*1000 {
			continue
		}
		results = append(results, Nearby{ID: id, Location: e.location, EncodedPath: e.encodedPath})
	}
	return results, nil
}

// SetLocation records a driver's current location.
func (x *InMemoryGeoIndex) SetLocation(_ context.Context, id string, loc polyline.Coordinate, vehicleType trip.VehicleType) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	e, ok := x.entries[id]
	if !ok {
		e = &geoEntry{}
		x.entries[id] = e
	}
	e.location = loc
	e.vehicleType = vehicleType
	return nil
}

// SetCurrentPath records a driver's current encoded path.
func (x *InMemoryGeoIndex) SetCurrentPath(_ context.Context, id string, encodedPath string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if e, ok := x.entries[id]; ok {
		e.encodedPath = encodedPath
	}
	return nil
}

// Remove takes a driver out of the index.
func (x *InMemoryGeoIndex) Remove(_ context.Context, id string, _ trip.VehicleType) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.entries, id)
	return nil
}

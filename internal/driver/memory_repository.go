package driver

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.Mutex
	drivers  map[string]*Driver
	vehicles map[string]*Vehicle
	paths    map[string]string
}

// NewInMemoryRepository creates a new in-memory driver repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		drivers:  make(map[string]*Driver),
		vehicles: make(map[string]*Vehicle),
		paths:    make(map[string]string),
	}
}

// Add registers a driver and its vehicle.
func (r *InMemoryRepository) Add(d Driver, v Vehicle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d.VehicleID = v.ID
	r.drivers[d.ID] = &d
	r.vehicles[v.ID] = &v
}

// Capacity returns a driver's current remaining capacity.
func (r *InMemoryRepository) Capacity(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.drivers[id]; ok {
		return d.Capacity
	}
	return 0
}

// CurrentPath returns the last path stored via UpdateCurrentPath.
func (r *InMemoryRepository) CurrentPath(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paths[id]
}

// ReserveCapacity atomically checks and decrements the driver's capacity.
func (r *InMemoryRepository) ReserveCapacity(_ context.Context, id string, passengers int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[id]
	if !ok {
		return false, ErrDriverNotFound
	}
	if d.Capacity < passengers {
		return false, nil
	}
	d.Capacity -= passengers
	return true, nil
}

// ReleaseCapacity returns previously reserved seats to the driver.
func (r *InMemoryRepository) ReleaseCapacity(_ context.Context, id string, passengers int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.Capacity += passengers
	return nil
}

// UpdateCurrentPath stores the driver's new encoded current path.
func (r *InMemoryRepository) UpdateCurrentPath(_ context.Context, id string, encodedPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.drivers[id]; !ok {
		return ErrDriverNotFound
	}
	r.paths[id] = encodedPath
	return nil
}

// NotificationToken returns the driver's push token.
func (r *InMemoryRepository) NotificationToken(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[id]
	if !ok {
		return "", ErrDriverNotFound
	}
	return d.NotificationToken, nil
}

// GetWithVehicle returns the driver record and its registered vehicle.
func (r *InMemoryRepository) GetWithVehicle(_ context.Context, id string) (*Driver, *Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drivers[id]
	if !ok {
		return nil, nil, ErrDriverNotFound
	}
	v, ok := r.vehicles[d.VehicleID]
	if !ok {
		return nil, nil, ErrDriverNotFound
	}

	dCpy := *d
	vCpy := *v
	return &dCpy, &vCpy, nil
}

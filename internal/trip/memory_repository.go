package trip

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	trips map[string]*Trip
}

// NewInMemoryRepository creates a new in-memory trip repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		trips: make(map[string]*Trip),
	}
}

// CreatePending stores a new trip in PENDING status.
func (r *InMemoryRepository) CreatePending(_ context.Context, t *Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *t
	r.trips[t.ID] = &cpy
	return nil
}

// Get retrieves a trip by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.trips[id]
	if !ok {
		return nil, ErrTripNotFound
	}

	cpy := *t
	return &cpy, nil
}

// Finalize records the matched driver, vehicle and route and moves the trip
// to MATCHED.
func (r *InMemoryRepository) Finalize(_ context.Context, id string, m Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trips[id]
	if !ok {
		return ErrTripNotFound
	}

	t.Status = StatusMatched
	t.TripPolyline = m.TripPolyline
	t.PickupWalk = m.PickupWalk
	t.DropoffWalk = m.DropoffWalk
	driver := m.Driver
	vehicle := m.Vehicle
	t.Driver = &driver
	t.Vehicle = &vehicle
	t.UpdatedAt = time.Now()
	return nil
}

// SetStatus transitions a trip's lifecycle status.
func (r *InMemoryRepository) SetStatus(_ context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trips[id]
	if !ok {
		return ErrTripNotFound
	}

	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

// All returns every stored trip. Test helper.
func (r *InMemoryRepository) All() []*Trip {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trips := make([]*Trip, 0, len(r.trips))
	for _, t := range r.trips {
		cpy := *t
		trips = append(trips, &cpy)
	}
	return trips
}

// Delete removes a trip.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trips[id]; !ok {
		return ErrTripNotFound
	}
	delete(r.trips, id)
	return nil
}

package offer

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is an in-memory implementation of Store.
// This is intended for testing. Production should use RedisStore.
type InMemoryStore struct {
	mu     sync.Mutex
	offers map[string]*Offer
	subs   map[string][]chan Event
}

// NewInMemoryStore creates a new in-memory offer store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		offers: make(map[string]*Offer),
		subs:   make(map[string][]chan Event),
	}
}

// Create stores a new offer.
func (s *InMemoryStore) Create(_ context.Context, o Offer, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpy := o
	s.offers[offerKey(o.TripID, o.DriverID)] = &cpy
	return nil
}

// Get returns the stored offer, if present.
func (s *InMemoryStore) Get(tripID, driverID string) (Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[offerKey(tripID, driverID)]
	if !ok {
		return Offer{}, false
	}
	return *o, true
}

// Accept marks the offer accepted and notifies subscribers.
func (s *InMemoryStore) Accept(_ context.Context, tripID, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := offerKey(tripID, driverID)
	o, ok := s.offers[key]
	if !ok {
		return ErrOfferNotFound
	}
	o.Accepted = true
	s.broadcast(key, Event{Accepted: true})
	return nil
}

// Delete removes the offer and notifies subscribers of a decline.
func (s *InMemoryStore) Delete(_ context.Context, tripID, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := offerKey(tripID, driverID)
	if _, ok := s.offers[key]; !ok {
		return nil
	}
	delete(s.offers, key)
	s.broadcast(key, Event{Deleted: true})
	return nil
}

// Subscribe returns a channel of change events for the offer.
func (s *InMemoryStore) Subscribe(_ context.Context, tripID, driverID string) (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := offerKey(tripID, driverID)
	events := make(chan Event, 4)
	s.subs[key] = append(s.subs[key], events)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		channels := s.subs[key]
		for i, ch := range channels {
			if ch == events {
				s.subs[key] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
	}
	return events, cancel, nil
}

// broadcast delivers an event to all subscribers without blocking; callers
// hold s.mu.
func (s *InMemoryStore) broadcast(key string, ev Event) {
	for _, ch := range s.subs[key] {
		select {
		case ch <- ev:
		default:
		}
	}
}

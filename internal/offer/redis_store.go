package offer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventAccepted = "accepted"
	eventDeleted  = "deleted"
)

// RedisStore keeps offer records in Redis hashes with a TTL safety net and
// publishes changes over Redis Pub/Sub. The TTL only backstops crashed
// dispatchers; the negotiation deletes resolved offers itself.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed offer store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create stores a new offer with the given TTL.
func (s *RedisStore) Create(ctx context.Context, o Offer, ttl time.Duration) error {
	key := offerKey(o.TripID, o.DriverID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"accepted":        "0",
		"passengers":      o.Passengers,
		"trip_polyline":   o.TripPolyline,
		"driver_polyline": o.DriverPolyline,
		"expires_at":      o.ExpiresAt.UTC().Format(time.RFC3339),
	})
	// Double the TTL so the record outlives a negotiation that resolves at
	// the deadline; explicit Delete is the normal cleanup.
	pipe.Expire(ctx, key, 2*ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

// Accept marks the offer accepted and notifies subscribers.
func (s *RedisStore) Accept(ctx context.Context, tripID, driverID string) error {
	key := offerKey(tripID, driverID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("accept offer: %w", err)
	}
	if exists == 0 {
		return ErrOfferNotFound
	}

	if err := s.client.HSet(ctx, key, "accepted", "1").Err(); err != nil {
		return fmt.Errorf("accept offer: %w", err)
	}
	return s.client.Publish(ctx, offerChannel(tripID, driverID), eventAccepted).Err()
}

// Delete removes the offer and notifies subscribers of a decline.
func (s *RedisStore) Delete(ctx context.Context, tripID, driverID string) error {
	if err := s.client.Del(ctx, offerKey(tripID, driverID)).Err(); err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	return s.client.Publish(ctx, offerChannel(tripID, driverID), eventDeleted).Err()
}

// Subscribe returns a channel of change events for the offer.
func (s *RedisStore) Subscribe(ctx context.Context, tripID, driverID string) (<-chan Event, func(), error) {
	sub := s.client.Subscribe(ctx, offerChannel(tripID, driverID))

	// Force the subscription to be established before returning so events
	// published after Subscribe are never missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe offer: %w", err)
	}

	events := make(chan Event, 1)
	done := make(chan struct{})

	go func() {
		defer close(events)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				switch msg.Payload {
				case eventAccepted:
					ev = Event{Accepted: true}
				case eventDeleted:
					ev = Event{Deleted: true}
				default:
					continue
				}
				// The subscriber may already be gone with the buffer full;
				// never let a publish wedge this goroutine.
				select {
				case events <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return events, cancel, nil
}

func offerKey(tripID, driverID string) string {
	return fmt.Sprintf("offer:%s:%s", tripID, driverID)
}

func offerChannel(tripID, driverID string) string {
	return fmt.Sprintf("offer:%s:%s:events", tripID, driverID)
}

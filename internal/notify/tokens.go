package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNoToken: the user has no registered notification token.
var ErrNoToken = errors.New("user has no notification token")

// TokenStore resolves a user's push notification token. Rider and driver
// apps register their device token on login.
type TokenStore interface {
	// Token returns the user's current device token. Returns ErrNoToken when
	// none is registered.
	Token(ctx context.Context, userID string) (string, error)

	// SetToken registers or replaces the user's device token.
	SetToken(ctx context.Context, userID, token string) error
}

// RedisTokenStore stores device tokens in Redis.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore creates a token store on the given client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func tokenKey(userID string) string {
	return fmt.Sprintf("notification_tokens:%s", userID)
}

// Token returns the user's registered device token.
func (s *RedisTokenStore) Token(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, tokenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("get notification token: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// SetToken registers or replaces the user's device token.
func (s *RedisTokenStore) SetToken(ctx context.Context, userID, token string) error {
	if err := s.client.Set(ctx, tokenKey(userID), token, 0).Err(); err != nil {
		return fmt.Errorf("set notification token: %w", err)
	}
	return nil
}

// InMemoryTokenStore is an in-memory implementation of TokenStore.
// This is intended for testing. Production should use RedisTokenStore.
type InMemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewInMemoryTokenStore creates a new in-memory token store.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]string)}
}

// Token returns the user's registered device token.
func (s *InMemoryTokenStore) Token(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[userID]
	if !ok || token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// SetToken registers or replaces the user's device token.
func (s *InMemoryTokenStore) SetToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[userID] = token
	return nil
}

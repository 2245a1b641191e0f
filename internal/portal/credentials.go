package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Credentials is a short-lived portal username/password pair supplied
// by the user per sync attempt.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CredentialStore holds credentials keyed by user id, TTL-bounded.
// Consulted at FETCHING time; absence is the "session expired" case.
type CredentialStore interface {
	Save(ctx context.Context, userID int64, creds Credentials) error
	Get(ctx context.Context, userID int64) (Credentials, bool, error)
	Clear(ctx context.Context, userID int64) error
}

// RedisCredentialStore implements CredentialStore on Redis with a
// per-entry TTL.
type RedisCredentialStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCredentialStore creates a store with the given TTL.
func NewRedisCredentialStore(client *redis.Client, ttl time.Duration) *RedisCredentialStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCredentialStore{client: client, ttl: ttl}
}

func credentialKey(userID int64) string {
	return fmt.Sprintf("portal:credentials:%d", userID)
}

func (s *RedisCredentialStore) Save(ctx context.Context, userID int64, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return s.client.Set(ctx, credentialKey(userID), data, s.ttl).Err()
}

func (s *RedisCredentialStore) Get(ctx context.Context, userID int64) (Credentials, bool, error) {
	data, err := s.client.Get(ctx, credentialKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return creds, true, nil
}

func (s *RedisCredentialStore) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, credentialKey(userID)).Err()
}

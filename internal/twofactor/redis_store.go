package twofactor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingKeyPrefix = "2fa:pending:"
	resendKeyPrefix  = "2fa:resend:"
)

// RedisStore is the shared-backend CodeStore used when the API runs as
// multiple instances. Entries expire via Redis TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SavePending(ctx context.Context, userID string, pending PendingLogin, ttl time.Duration) error {
	return s.set(ctx, pendingKeyPrefix+userID, pending, ttl)
}

func (s *RedisStore) GetPending(ctx context.Context, userID string) (*PendingLogin, error) {
	var pending PendingLogin
	ok, err := s.get(ctx, pendingKeyPrefix+userID, &pending)
	if err != nil || !ok {
		return nil, err
	}
	return &pending, nil
}

func (s *RedisStore) DeletePending(ctx context.Context, userID string) error {
	return s.client.Del(ctx, pendingKeyPrefix+userID).Err()
}

func (s *RedisStore) SaveResendState(ctx context.Context, userID string, state ResendState, ttl time.Duration) error {
	return s.set(ctx, resendKeyPrefix+userID, state, ttl)
}

func (s *RedisStore) GetResendState(ctx context.Context, userID string) (*ResendState, error) {
	var state ResendState
	ok, err := s.get(ctx, resendKeyPrefix+userID, &state)
	if err != nil || !ok {
		return nil, err
	}
	return &state, nil
}

func (s *RedisStore) DeleteResendState(ctx context.Context, userID string) error {
	return s.client.Del(ctx, resendKeyPrefix+userID).Err()
}

func (s *RedisStore) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string, out any) (bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

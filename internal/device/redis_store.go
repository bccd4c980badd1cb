package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash at key, field = device name, value = JSON
// {"status": ..., "updated_at": ...}. It keeps no history.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

// NewRedisStore uses key as the hash name.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type redisValue struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All implements Store.
func (s *RedisStore) All(ctx context.Context) ([]State, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStoreUnavailable, s.key, err)
	}

	states := make([]State, 0, len(fields))
	for name, raw := range fields {
		states = append(states, decodeRedisValue(name, raw))
	}
	return states, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, name string) (State, error) {
	raw, err := s.client.HGet(ctx, s.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrDeviceNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: reading %s: %w", ErrStoreUnavailable, name, err)
	}
	return decodeRedisValue(name, raw), nil
}

// Upsert implements Store. HSET replaces the field atomically.
func (s *RedisStore) Upsert(ctx context.Context, name, status string) error {
	b, err := json.Marshal(redisValue{Status: status, UpdatedAt: s.now()})
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, name, b).Err(); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrStoreUnavailable, name, err)
	}
	return nil
}

// decodeRedisValue tolerates bare status strings written by other tools.
func decodeRedisValue(name, raw string) State {
	var v redisValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return State{DeviceName: name, Status: raw}
	}
	return State{DeviceName: name, Status: v.Status, UpdatedAt: v.UpdatedAt.UTC()}
}

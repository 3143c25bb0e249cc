package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/pkg/circuitbreaker"
)

const keyPrefix = "medcol:session:"

// RedisClient is the subset of go-redis commands the store uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisStore struct {
	client RedisClient
	cb     *gobreaker.CircuitBreaker
}

func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{
		client: client,
		cb:     circuitbreaker.New(circuitbreaker.DefaultSettings("redis-session")),
	}
}

func (s *RedisStore) Save(ctx context.Context, id string, identity *model.Identity, ttl time.Duration) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, keyPrefix+id, string(data), ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*model.Identity, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		val, err := s.client.Get(ctx, keyPrefix+id).Result()
		if errors.Is(err, redis.Nil) {
			// a miss is not a backend failure
			return "", nil
		}
		return val, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	raw := res.(string)
	if raw == "" {
		return nil, ErrSessionNotFound
	}

	var identity model.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, ErrCorruptSession
	}
	return &identity, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, keyPrefix+id).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

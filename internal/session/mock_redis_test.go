package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// mockRedisClient is an in-memory stand-in for the go-redis commands used by RedisStore.
type mockRedisClient struct {
	mu   sync.RWMutex
	data map[string]mockRedisValue

	SetError error
	GetError error
	DelError error
}

type mockRedisValue struct {
	value     string
	expiresAt time.Time
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{data: make(map[string]mockRedisValue)}
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStatusCmd(ctx)
	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}

	expiresAt := time.Time{}
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}
	m.data[key] = mockRedisValue{value: value.(string), expiresAt: expiresAt}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cmd := redis.NewStringCmd(ctx)
	if m.GetError != nil {
		cmd.SetErr(m.GetError)
		return cmd
	}

	val, ok := m.data[key]
	if !ok || (!val.expiresAt.IsZero() && time.Now().After(val.expiresAt)) {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val.value)
	return cmd
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.DelError != nil {
		cmd.SetErr(m.DelError)
		return cmd
	}

	var deleted int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			deleted++
		}
	}
	cmd.SetVal(deleted)
	return cmd
}

func (m *mockRedisClient) setKey(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = mockRedisValue{value: value}
}

func (m *mockRedisClient) keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

// MemoryStore keeps sessions in process. Sessions do not survive a restart.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Save(_ context.Context, id string, identity *model.Identity, ttl time.Duration) error {
	cp := *identity
	s.cache.Set(id, cp, ttl)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*model.Identity, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	identity, ok := v.(model.Identity)
	if !ok {
		return nil, ErrCorruptSession
	}
	return &identity, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

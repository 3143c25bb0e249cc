package lookup

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/dispensing-api/internal/model"
)

// CachedClient remembers non-empty results for a short time.
// Misses are not cached so a patient registered a moment ago is found on retry.
type CachedClient struct {
	next  Client
	cache *cache.Cache
}

func NewCachedClient(next Client, ttl time.Duration) *CachedClient {
	return &CachedClient{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedClient) Search(ctx context.Context, q Query) ([]model.PatientRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if v, ok := c.cache.Get(q.key()); ok {
		return copyRecords(v.([]model.PatientRecord)), nil
	}

	records, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		c.cache.SetDefault(q.key(), copyRecords(records))
	}
	return records, nil
}

func copyRecords(in []model.PatientRecord) []model.PatientRecord {
	out := make([]model.PatientRecord, len(in))
	copy(out, in)
	return out
}

package user

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Cache is the byte cache CachedRepository reads through. Get reports a
// miss with any error; callers treat every cache error as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedRepository caches single-user lookups in front of another
// Repository. Entries are dropped on update and delete; listings always go
// to the underlying store.
//
// A lookup that overlaps a write in this process never leaves the old
// record cached. Writes made by other instances are only seen once their
// eviction lands or the entry's TTL expires.
type CachedRepository struct {
	Repository
	cache Cache
	ttl   time.Duration
	log   *zap.Logger

	// writes counts completed updates and deletes.
	writes atomic.Uint64
}

var _ Repository = (*CachedRepository)(nil)

func NewCachedRepository(next Repository, cache Cache, ttl time.Duration, log *zap.Logger) *CachedRepository {
	return &CachedRepository{Repository: next, cache: cache, ttl: ttl, log: log}
}

func cacheKey(id string) string {
	return "user:" + id
}

func (r *CachedRepository) GetByID(ctx context.Context, id string) (User, error) {
	if b, err := r.cache.Get(ctx, cacheKey(id)); err == nil {
		var u User
		if err := json.Unmarshal(b, &u); err == nil {
			return u, nil
		}
	}

	seen := r.writes.Load()
	u, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if r.writes.Load() != seen {
		return u, nil
	}

	if b, err := json.Marshal(u); err == nil {
		if err := r.cache.Set(ctx, cacheKey(id), b, r.ttl); err != nil {
			r.log.Warn("cache user", zap.String("user_id", id), zap.Error(err))
		}
		// a write that finished while Set was in flight may already have
		// evicted; drop what was just stored
		if r.writes.Load() != seen {
			r.evict(ctx, id)
		}
	}
	return u, nil
}

func (r *CachedRepository) Update(ctx context.Context, id string, p Patch) (User, error) {
	u, err := r.Repository.Update(ctx, id, p)
	r.writes.Add(1)
	r.evict(ctx, id)
	return u, err
}

func (r *CachedRepository) Delete(ctx context.Context, id string) (User, error) {
	u, err := r.Repository.Delete(ctx, id)
	r.writes.Add(1)
	r.evict(ctx, id)
	return u, err
}

func (r *CachedRepository) evict(ctx context.Context, id string) {
	if err := r.cache.Del(ctx, cacheKey(id)); err != nil {
		r.log.Warn("evict cached user", zap.String("user_id", id), zap.Error(err))
	}
}

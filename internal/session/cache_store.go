package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// CacheStore keeps sessions as JSON documents in a gocache store.
type CacheStore struct {
	cache  store.StoreInterface
	prefix string
}

// NewCacheStore wraps any gocache store.
func NewCacheStore(cache store.StoreInterface) *CacheStore {
	return &CacheStore{
		cache:  cache,
		prefix: "session:",
	}
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client) *CacheStore {
	return NewCacheStore(redis_store.NewRedis(client))
}

// NewMemoryStore creates a process-local session store for single
// instance deployments and tests.
func NewMemoryStore(defaultTTL time.Duration) *CacheStore {
	return NewCacheStore(gocache_store.NewGoCache(gocache.New(defaultTTL, 10*time.Minute)))
}

// Type names the backing store ("redis", "go-cache").
func (r *CacheStore) Type() string {
	return r.cache.GetType()
}

func (r *CacheStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *CacheStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	val, err := r.cache.Get(ctx, r.key(sessionID))
	if isNotFound(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var data []byte
	switch v := val.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, fmt.Errorf("session: unexpected stored type %T", val)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	s.ID = sessionID

	return &s, nil
}

func (r *CacheStore) Save(ctx context.Context, s *Session, ttl time.Duration) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session: missing session_id")
	}
	if ttl <= 0 {
		return fmt.Errorf("session: ttl must be positive")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	if err := r.cache.Set(ctx, r.key(s.ID), data, store.WithExpiration(ttl)); err != nil {
		return fmt.Errorf("session: set: %w", err)
	}

	return nil
}

func (r *CacheStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.cache.Delete(ctx, r.key(sessionID)); err != nil && !isNotFound(err) {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *store.NotFound
	return errors.As(err, &nf) || errors.Is(err, redis.Nil)
}

package strategy

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultCacheTTL is how long a cached document is trusted
const DefaultCacheTTL = 10 * time.Minute

// Cache holds the latest document per partition. Every entry is keyed by partition and
// expires on its own.
type Cache interface {
	Get(ctx context.Context, partition string) (*Document, bool, error)
	Set(ctx context.Context, doc *Document) error
	Invalidate(ctx context.Context, partition string) error
}

type cacheEntry struct {
	doc     *Document
	expires time.Time
}

// MemoryCache is an in-process Cache
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns the partition's document unless it has expired
func (c *MemoryCache) Get(_ context.Context, partition string) (*Document, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[partition]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expires) {
		return nil, false, nil
	}
	return entry.doc, true, nil
}

// Set stores doc under its partition
func (c *MemoryCache) Set(_ context.Context, doc *Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[doc.Partition] = cacheEntry{doc: doc, expires: c.now().Add(c.ttl)}
	return nil
}

// Invalidate drops one partition
func (c *MemoryCache) Invalidate(_ context.Context, partition string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, partition)
	return nil
}

// Size returns the number of stored entries, expired ones included
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisCache shares documents across processes under strategy:<partition> keys
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisCacheFromClient(rdb, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "strategy:"}
}

// Key returns the Redis key of a partition
func (r *RedisCache) Key(partition string) string {
	return r.prefix + partition
}

// Get retrieves a document; a missing key is a miss, not an error
func (r *RedisCache) Get(ctx context.Context, partition string) (*Document, bool, error) {
	val, err := r.client.Get(ctx, r.Key(partition)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(val, &doc); err != nil {
		return nil, false, fmt.Errorf("redis get: decode document: %w", err)
	}
	return &doc, true, nil
}

// Set stores a document with the cache TTL
func (r *RedisCache) Set(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis set: encode document: %w", err)
	}
	if err := r.client.Set(ctx, r.Key(doc.Partition), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate removes a partition's key
func (r *RedisCache) Invalidate(ctx context.Context, partition string) error {
	if err := r.client.Del(ctx, r.Key(partition)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// CachedStore reads through a per-partition cache and refreshes only the saved partition's
// slot on write. Cache failures degrade to the backing store.
type CachedStore struct {
	store Store
	cache Cache
}

// NewCachedStore wraps store with cache
func NewCachedStore(store Store, cache Cache) *CachedStore {
	return &CachedStore{store: store, cache: cache}
}

// Save persists the document, then refreshes its partition's cache slot
func (s *CachedStore) Save(ctx context.Context, doc *Document) error {
	if err := s.store.Save(ctx, doc); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, doc); err != nil {
		log.Printf("⚠️ strategy cache refresh for %s failed: %v", doc.Partition, err)
		_ = s.cache.Invalidate(ctx, doc.Partition)
	}
	return nil
}

// Latest serves from cache when possible
func (s *CachedStore) Latest(ctx context.Context, partition string) (*Document, error) {
	doc, ok, err := s.cache.Get(ctx, partition)
	if err != nil {
		log.Printf("⚠️ strategy cache read for %s failed: %v", partition, err)
	}
	if ok {
		return doc, nil
	}

	doc, err = s.store.Latest(ctx, partition)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, doc); err != nil {
		log.Printf("⚠️ strategy cache fill for %s failed: %v", partition, err)
	}
	return doc, nil
}

// Partitions delegates to the backing store
func (s *CachedStore) Partitions(ctx context.Context) ([]string, error) {
	return s.store.Partitions(ctx)
}

// IsNotFound reports whether err means the partition has no document
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

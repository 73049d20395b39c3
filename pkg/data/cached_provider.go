package data

import (
	"context"
	"log"
	"sync"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// MemoryCache implements EventCache using in-memory storage
type MemoryCache struct {
	cache map[string][]types.Event
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string][]types.Event),
	}
}

// Get retrieves events from cache if available
func (c *MemoryCache) Get(key string) ([]types.Event, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	events, exists := c.cache[key]
	if exists {
		// Return a copy to prevent external modifications
		result := make([]types.Event, len(events))
		copy(result, events)
		return result, true
	}
	return nil, false
}

// Set stores events in cache
func (c *MemoryCache) Set(key string, events []types.Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cached := make([]types.Event, len(events))
	copy(cached, events)
	c.cache[key] = cached
}

// Clear removes all cached events
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[string][]types.Event)
}

// Size returns the number of cached entries
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.cache)
}

// CachedSource wraps another EventSource with per-partition caching
type CachedSource struct {
	source EventSource
	cache  EventCache

	mu         sync.Mutex
	partitions []types.PartitionInfo
}

// NewCachedSource creates a new cached event source
func NewCachedSource(source EventSource) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  NewMemoryCache(),
	}
}

// NewCachedSourceWithCache creates a new cached event source with custom cache
func NewCachedSourceWithCache(source EventSource, cache EventCache) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache,
	}
}

// GetName returns the name of the underlying source with cache indication
func (s *CachedSource) GetName() string {
	return "Cached " + s.source.GetName()
}

// LoadEvents loads events with caching keyed by partition
func (s *CachedSource) LoadEvents(ctx context.Context, partition string) ([]types.Event, error) {
	if cached, exists := s.cache.Get(partition); exists {
		return cached, nil
	}

	log.Printf("🔄 Loading events for %s from %s", partition, s.source.GetName())
	events, err := s.source.LoadEvents(ctx, partition)
	if err != nil {
		log.Printf("❌ Failed to load events for %s: %v", partition, err)
		return nil, err
	}

	s.cache.Set(partition, events)
	log.Printf("✅ Loaded and cached %s (%d events)", partition, len(events))
	return events, nil
}

// Partitions returns the cached partition listing, loading it on first use
func (s *CachedSource) Partitions(ctx context.Context) ([]types.PartitionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.partitions != nil {
		return append([]types.PartitionInfo(nil), s.partitions...), nil
	}
	infos, err := s.source.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	s.partitions = infos
	return append([]types.PartitionInfo(nil), infos...), nil
}

// ClearCache drops every cached partition so newly resolved events are picked up
func (s *CachedSource) ClearCache() {
	s.cache.Clear()
	s.mu.Lock()
	s.partitions = nil
	s.mu.Unlock()
}

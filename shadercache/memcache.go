package shadercache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

const (
	// memShardCount must be a power of two.
	memShardCount = 16
	memShardMask  = memShardCount - 1

	// DefaultMemCapacity is the default number of decoded programs kept per shard.
	DefaultMemCapacity = 32
)

// CacheStats reports in-memory cache activity.
type CacheStats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// memCache is a sharded LRU of raw program blobs in front of the disk store.
type memCache struct {
	shards   [memShardCount]*memShard
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type memShard struct {
	mu      sync.Mutex
	entries map[Key]*list.Element
	lru     *list.List
}

type memEntry struct {
	key  Key
	blob []byte
}

func newMemCache(capacity int) *memCache {
	if capacity <= 0 {
		capacity = DefaultMemCapacity
	}
	c := &memCache{capacity: capacity}
	for i := range c.shards {
		c.shards[i] = &memShard{entries: make(map[Key]*list.Element), lru: list.New()}
	}
	return c
}

func (c *memCache) shard(k Key) *memShard { return c.shards[k.shard()&memShardMask] }

func (c *memCache) get(k Key) ([]byte, bool) {
	s := c.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[k]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	s.lru.MoveToFront(el)
	c.hits.Add(1)
	return el.Value.(*memEntry).blob, true
}

func (c *memCache) set(k Key, blob []byte) {
	s := c.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[k]; ok {
		el.Value.(*memEntry).blob = blob
		s.lru.MoveToFront(el)
		return
	}
	for s.lru.Len() >= c.capacity {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.entries, oldest.Value.(*memEntry).key)
		c.evictions.Add(1)
	}
	s.entries[k] = s.lru.PushFront(&memEntry{key: k, blob: blob})
}

func (c *memCache) delete(k Key) {
	s := c.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[k]; ok {
		s.lru.Remove(el)
		delete(s.entries, k)
	}
}

func (c *memCache) len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

func (c *memCache) stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return CacheStats{
		Len:       c.len(),
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}

package api

import (
	"container/list"
	"sync"
	"time"
)

// Tag groups cached reads for invalidation. An empty ID matches every tag of
// the same Type, in either direction.
type Tag struct {
	Type string
	ID   string
}

func (t Tag) matches(other Tag) bool {
	if t.Type != other.Type {
		return false
	}
	return t.ID == "" || other.ID == "" || t.ID == other.ID
}

// Resource tags.
var (
	TagMe             = Tag{Type: "Me"}
	TagProcessedList  = Tag{Type: "ProcessedData", ID: "LIST"}
	TagProcessedCount = Tag{Type: "ProcessedData", ID: "COUNT"}
	TagAnomalies      = Tag{Type: "Anomalies"}
	TagForecasts      = Tag{Type: "Forecasts"}
	TagModels         = Tag{Type: "Models"}
	TagNotifications  = Tag{Type: "Notifications"}
)

// responseCache is a thread-safe LRU of response bodies with a TTL and
// per-entry tags.
type responseCache struct {
	capacity int
	ttl      time.Duration
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	now      func() time.Time
}

type cacheEntry struct {
	key     string
	value   []byte
	tags    []Tag
	expires time.Time
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	if capacity < 1 {
		capacity = 1
	}
	return &responseCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns a live entry and marks it most recently used. Expired entries
// are dropped on access.
func (c *responseCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if !c.now().Before(entry.expires) {
		c.remove(elem)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.value, true
}

// Put stores a value, evicting the least recently used entry when full.
func (c *responseCache) Put(key string, value []byte, tags []Tag) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if elem, exists := c.cache[key]; exists {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.tags = tags
		entry.expires = expires
		return
	}

	if c.lru.Len() >= c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.remove(oldest)
		}
	}

	entry := &cacheEntry{key: key, value: value, tags: tags, expires: expires}
	c.cache[key] = c.lru.PushFront(entry)
}

// Invalidate drops every entry providing any of the given tags and returns
// how many were dropped.
func (c *responseCache) Invalidate(tags ...Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if entryMatches(elem.Value.(*cacheEntry), tags) {
			c.remove(elem)
			dropped++
		}
		elem = next
	}
	return dropped
}

func entryMatches(entry *cacheEntry, tags []Tag) bool {
	for _, provided := range entry.tags {
		for _, tag := range tags {
			if provided.matches(tag) {
				return true
			}
		}
	}
	return false
}

func (c *responseCache) remove(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.cache, elem.Value.(*cacheEntry).key)
}

func (c *responseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *responseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lru = list.New()
}

package assets

import (
	"container/list"
	"sync"
)

// Cache is a thread-safe LRU for asset bytes bounded by total size
type Cache struct {
	mutex    sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	hits     int64
	misses   int64
}

type cacheEntry struct {
	key  string
	data []byte
}

// NewCache creates a cache holding at most capacity bytes
func NewCache(capacity int64) *Cache {
	if capacity <= 0 {
		capacity = 64 * 1024 * 1024
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns cached bytes and marks them as recently used
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		c.hits++
		return el.Value.(*cacheEntry).data, true
	}
	c.misses++
	return nil, false
}

// Put stores data under key. Entries larger than the whole cache are not kept.
func (c *Cache) Put(key string, data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := int64(len(data))
	if n > c.capacity {
		return
	}

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		c.size += n - int64(len(entry.data))
		entry.data = data
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&cacheEntry{key: key, data: data})
		c.size += n
	}

	for c.size > c.capacity {
		c.evictOldest()
	}
}

// Remove drops key from the cache
func (c *Cache) Remove(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		HitRate:  hitRate,
		Entries:  len(c.items),
		Bytes:    c.size,
		Capacity: c.capacity,
	}
}

func (c *Cache) evictOldest() {
	if el := c.order.Back(); el != nil {
		c.removeElement(el)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.data))
}

// CacheStats provides statistics about cache usage
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate_percent"`
	Entries  int     `json:"entries"`
	Bytes    int64   `json:"bytes"`
	Capacity int64   `json:"capacity_bytes"`
}

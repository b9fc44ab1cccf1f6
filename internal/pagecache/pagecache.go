package pagecache

import (
	"sync"
)

// FilterAll is the bucket tag used when the caller does not filter the
// match history by queue or mode.
const FilterAll = "all"

const defaultBucketLimit = 5

type pageKey struct {
	start int
	size  int
}

type pageEntry struct {
	key     pageKey
	payload []byte
}

// bucket holds the cached pages for one (player, filter) pair. Eviction is
// FIFO by insertion order, not LRU: pagination revisits only the last few
// pages, so insertion order tracks usefulness closely enough.
type bucket struct {
	mu      sync.Mutex
	entries []pageEntry
}

// Cache is a bounded store of raw match-page payloads keyed by
// (player, filter, page). Buckets are independent: concurrent access for
// unrelated players never contends on a shared lock.
type Cache struct {
	buckets sync.Map // bucketKey -> *bucket
	limit   int
}

type bucketKey struct {
	opaqueID string
	filter   string
}

func New(limit int) *Cache {
	if limit <= 0 {
		limit = defaultBucketLimit
	}
	return &Cache{limit: limit}
}

func normalizeFilter(filter string) string {
	if filter == "" {
		return FilterAll
	}
	return filter
}

// Put stores a page payload. Empty payloads are not cached. Storing a page
// already present replaces its payload without changing its eviction slot.
func (c *Cache) Put(opaqueID, filter string, pageStart, pageSize int, payload []byte) {
	if len(payload) == 0 {
		return
	}

	bk := bucketKey{opaqueID: opaqueID, filter: normalizeFilter(filter)}
	v, _ := c.buckets.LoadOrStore(bk, &bucket{})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	pk := pageKey{start: pageStart, size: pageSize}
	for i := range b.entries {
		if b.entries[i].key == pk {
			b.entries[i].payload = payload
			return
		}
	}

	b.entries = append(b.entries, pageEntry{key: pk, payload: payload})
	if len(b.entries) > c.limit {
		b.entries = b.entries[len(b.entries)-c.limit:]
	}
}

// Get returns the cached payload for a page, or false on a miss. A miss is
// normal control flow, never an error.
func (c *Cache) Get(opaqueID, filter string, pageStart, pageSize int) ([]byte, bool) {
	bk := bucketKey{opaqueID: opaqueID, filter: normalizeFilter(filter)}
	v, ok := c.buckets.Load(bk)
	if !ok {
		return nil, false
	}
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	pk := pageKey{start: pageStart, size: pageSize}
	for i := range b.entries {
		if b.entries[i].key == pk {
			return b.entries[i].payload, true
		}
	}
	return nil, false
}

// ClearPlayer drops every cached page for a player across all filters.
func (c *Cache) ClearPlayer(opaqueID string) {
	c.buckets.Range(func(k, _ any) bool {
		if k.(bucketKey).opaqueID == opaqueID {
			c.buckets.Delete(k)
		}
		return true
	})
}

// Len reports the number of entries in one (player, filter) bucket.
func (c *Cache) Len(opaqueID, filter string) int {
	bk := bucketKey{opaqueID: opaqueID, filter: normalizeFilter(filter)}
	v, ok := c.buckets.Load(bk)
	if !ok {
		return 0
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

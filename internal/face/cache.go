package face

import "sync"

// CollectionCache memoizes which per-event collections are known to exist.
// It is shared by every request in the process; losing an add race costs one
// redundant existence check against the backend, nothing more. It never owns
// collections, it only remembers them.
type CollectionCache struct {
	mu    sync.RWMutex
	known map[string]struct{}
}

func NewCollectionCache() *CollectionCache {
	return &CollectionCache{known: make(map[string]struct{})}
}

func (c *CollectionCache) Has(collectionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.known[collectionID]
	return ok
}

func (c *CollectionCache) Add(collectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[collectionID] = struct{}{}
}

// Forget drops a memoized collection, used when the backend reports it gone.
func (c *CollectionCache) Forget(collectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.known, collectionID)
}

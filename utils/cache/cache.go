package cache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned for keys missing from the cache.
var ErrNotFound = errors.New("not found")

// RemovalNotifier is called with the value of every item removed from a cache.
type RemovalNotifier func(c DataStore, id interface{}, item interface{})

// DataStore is the interface to a datastore.
type DataStore interface {
	AddOrUpdate(u interface{}, value interface{}) bool
	Get(u interface{}) (i interface{}, err error)
	Remove(u interface{}) (err error)
	KeyList() []interface{}
	ToString() string
}

// Cache is a named keyed store safe for concurrent use.
type Cache struct {
	name     string
	data     map[interface{}]interface{}
	notifier RemovalNotifier
	max      int
	sync.RWMutex
}

// cacheRegistry keeps handles of all caches for book keeping.
type cacheRegistry struct {
	sync.RWMutex
	items map[string]*Cache
}

var registry *cacheRegistry

func init() {

	registry = &cacheRegistry{
		items: make(map[string]*Cache),
	}
}

func (r *cacheRegistry) Add(c *Cache) {
	r.Lock()
	defer r.Unlock()

	r.items[c.name] = c
}

// ToString generates information about all caches.
func (r *cacheRegistry) ToString() string {
	r.RLock()
	defer r.RUnlock()

	names := make([]string, 0, len(r.items))
	for k := range r.items {
		names = append(names, k)
	}
	sort.Strings(names)

	buffer := fmt.Sprintf("Cache Registry: %d\n", len(r.items))
	buffer += fmt.Sprintf(" %32s : %s\n\n", "Cache Name", "max/curr")
	for _, k := range names {
		buffer += fmt.Sprintf(" %32s : %s\n", k, r.items[k].ToString())
	}
	return buffer
}

// NewCacheWithRemovalNotifier creates a new data cache that calls notifier
// for every item removed from it.
func NewCacheWithRemovalNotifier(name string, notifier RemovalNotifier) *Cache {

	c := &Cache{
		name:     name,
		data:     make(map[interface{}]interface{}),
		notifier: notifier,
	}
	registry.Add(c)
	return c
}

// ToString generates information about all caches.
func ToString() string {

	return registry.ToString()
}

// ToString provides statistics about this cache
func (c *Cache) ToString() string {
	c.RLock()
	defer c.RUnlock()

	return fmt.Sprintf("%d/%d", c.max, len(c.data))
}

// AddOrUpdate adds a new value in the cache or updates the existing value.
// Returns true if key was updated.
func (c *Cache) AddOrUpdate(u interface{}, value interface{}) (updated bool) {

	c.Lock()
	defer c.Unlock()

	_, updated = c.data[u]
	c.data[u] = value
	if len(c.data) > c.max {
		c.max = len(c.data)
	}

	return updated
}

// Get retrieves the entry from the cache
func (c *Cache) Get(u interface{}) (interface{}, error) {

	c.RLock()
	defer c.RUnlock()

	value, ok := c.data[u]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "key %v", u)
	}

	return value, nil
}

// KeyList returns all the keys that are currently stored in the cache.
func (c *Cache) KeyList() []interface{} {
	c.RLock()
	defer c.RUnlock()

	list := []interface{}{}
	for k := range c.data {
		list = append(list, k)
	}
	return list
}

// Remove removes the entry from the cache and returns error if not there.
// The notifier runs after the cache lock is released.
func (c *Cache) Remove(u interface{}) error {

	c.Lock()
	val, ok := c.data[u]
	if ok {
		delete(c.data, u)
	}
	c.Unlock()

	if !ok {
		return errors.Wrapf(ErrNotFound, "key %v", u)
	}

	if c.notifier != nil {
		c.notifier(c, u, val)
	}

	return nil
}

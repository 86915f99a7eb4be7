package cache

import (
	"sort"
	"sync"

	"golang.org/x/text/cases"
)

// FoldKey case-folds a field or type name so lookups are case-insensitive
func FoldKey(name string) string {
	return cases.Fold().String(name)
}

type fieldValue struct {
	value   interface{}
	version uint64
}

// EntityCache holds the field values of one entity, plus its dirty and flush sets.
// All operations are guarded by a single read/write lock, so every field operation is linearizable.
type EntityCache struct {
	mu      sync.RWMutex
	values  map[string]fieldValue
	dirty   map[string]struct{}
	flush   map[string]struct{}
	version uint64
}

// NewEntityCache returns an empty cache
func NewEntityCache() *EntityCache {
	return &EntityCache{
		values: map[string]fieldValue{},
		dirty:  map[string]struct{}{},
		flush:  map[string]struct{}{},
	}
}

// Get returns the cached value, ok is false when the field is not cached. A cached nil is ok
func (c *EntityCache) Get(field string) (value interface{}, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[FoldKey(field)]
	return v.value, ok
}

// Has reports whether the field is cached
func (c *EntityCache) Has(field string) bool {
	_, ok := c.Get(field)
	return ok
}

func (c *EntityCache) Put(field string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(FoldKey(field), value)
}

func (c *EntityCache) put(key string, value interface{}) {
	c.version++
	c.values[key] = fieldValue{value: value, version: c.version}
}

// PutIfAbsent stores value unless the field was cached meanwhile, and returns the cached value.
// Lazy reads use it so that a write racing with the read wins.
func (c *EntityCache) PutIfAbsent(field string, value interface{}) (actual interface{}, stored bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := FoldKey(field)
	if v, ok := c.values[key]; ok {
		return v.value, false
	}
	c.put(key, value)
	return value, true
}

// Set stores value and marks the field dirty in one step
func (c *EntityCache) Set(field string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := FoldKey(field)
	c.put(key, value)
	c.dirty[key] = struct{}{}
}

// Remove drops a cached value. A dirty field stays dirty
func (c *EntityCache) Remove(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, FoldKey(field))
}

func (c *EntityCache) MarkDirty(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[FoldKey(field)] = struct{}{}
}

func (c *EntityCache) IsDirty(field string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.dirty[FoldKey(field)]
	return ok
}

// DirtyFields returns the folded names of the dirty fields, sorted
func (c *EntityCache) DirtyFields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.dirty)
}

// Snapshot the dirty fields at a point in time
type Snapshot struct {
	Values   map[string]interface{}
	versions map[string]uint64
}

// Fields returns the folded field names of the snapshot, sorted
func (s Snapshot) Fields() []string {
	fields := make([]string, 0, len(s.Values))
	for k := range s.Values {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func (s Snapshot) Empty() bool {
	return len(s.Values) == 0
}

// DirtySnapshot captures the dirty fields and their values. A dirty field without cached value
// snapshots as nil
func (c *EntityCache) DirtySnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{Values: make(map[string]interface{}, len(c.dirty)), versions: make(map[string]uint64, len(c.dirty))}
	for key := range c.dirty {
		v := c.values[key]
		s.Values[key] = v.value
		s.versions[key] = v.version
	}
	return s
}

// CommitDirty clears the dirty flag of the snapshot fields that were not written since the snapshot
func (c *EntityCache) CommitDirty(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, version := range s.versions {
		if c.values[key].version == version {
			delete(c.dirty, key)
		}
	}
}

func (c *EntityCache) ClearDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = map[string]struct{}{}
}

// Clear evicts every value that is not dirty, unflushed writes survive
func (c *EntityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.values {
		if _, ok := c.dirty[key]; !ok {
			delete(c.values, key)
		}
	}
}

// Reset drops values, dirty and flush sets
func (c *EntityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = map[string]fieldValue{}
	c.dirty = map[string]struct{}{}
	c.flush = map[string]struct{}{}
}

// MarkFlush records an entity type whose relation caches must be invalidated on the next save
func (c *EntityCache) MarkFlush(entityType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flush[entityType] = struct{}{}
}

func (c *EntityCache) FlushSet() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.flush)
}

// TakeFlush returns the flush set and empties it, marks made afterwards are kept for the next save
func (c *EntityCache) TakeFlush() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := sortedKeys(c.flush)
	c.flush = map[string]struct{}{}
	return types
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/viccon/sturdyc"
	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/utils"
)

// RelationKey identifies a cached relation query
type RelationKey struct {
	Source      Identity
	TargetType  string
	ThroughType string
	Fields      []string
}

func newRelationKey(source Identity, targetType, throughType string, fields []string) RelationKey {
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = FoldKey(f)
	}
	return RelationKey{Source: source, TargetType: targetType, ThroughType: throughType, Fields: utils.SortedUnique(folded)}
}

func (k RelationKey) String() string {
	fields := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		fields[i] = escapeKey(f)
	}
	return strings.Join([]string{
		k.Source.Key(), escapeKey(k.TargetType), escapeKey(k.ThroughType), strings.Join(fields, ","),
	}, KeySeparator)
}

// indexType entries are indexed under the through type, or the target type for plain one-to-many
func (k RelationKey) indexType() string {
	if k.ThroughType != "" {
		return k.ThroughType
	}
	return k.TargetType
}

type fieldRef struct {
	entity string
	field  string
}

type membership struct {
	typ  string
	refs []fieldRef
}

// RelationsCache caches the results of to-many relation queries.
//
// Results live in a sturdyc client so they expire and get evicted under memory pressure. Beside it two
// reverse indexes, type -> keys and (entity, field) -> keys, make invalidation proportional to the
// number of affected entries. The store and both indexes change under one writer lock.
type RelationsCache[V any] struct {
	mu       sync.RWMutex
	store    *sturdyc.Client[[]V]
	capacity int
	byType   map[string]map[string]struct{}
	byField  map[fieldRef]map[string]struct{}
	members  map[string]membership
	logger   logger.Interface
}

// NewRelationsCache creates a relations cache, log receives consistency warnings
func NewRelationsCache[V any](config Config, log logger.Interface) (*RelationsCache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard
	}

	return &RelationsCache[V]{
		store:    sturdyc.New[[]V](config.Capacity, config.NumShards, config.TTL, config.EvictionPercentage),
		capacity: config.Capacity,
		byType:   map[string]map[string]struct{}{},
		byField:  map[fieldRef]map[string]struct{}{},
		members:  map[string]membership{},
		logger:   log,
	}, nil
}

// Get returns the cached result for the query key
func (c *RelationsCache[V]) Get(source Identity, targetType, throughType string, fields []string) ([]V, bool) {
	key := newRelationKey(source, targetType, throughType, fields).String()

	c.mu.RLock()
	defer c.mu.RUnlock()

	result, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	return append([]V(nil), result...), true
}

// Put caches result. through lists the entities the join executes through, a change of any of
// fields on one of them invalidates the entry. Empty results are never cached.
func (c *RelationsCache[V]) Put(source Identity, through []Identity, throughType string, result []V, targetType string, fields []string) {
	if len(result) == 0 {
		return
	}

	k := newRelationKey(source, targetType, throughType, fields)
	key := k.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[key]; ok {
		// entries the store expired or evicted are still indexed until pruned
		if _, live := c.store.Get(key); live {
			c.logger.Warn(context.Background(), "relation cache key %s already present, replacing", key)
		}
		c.remove(key)
	}

	if len(c.members) >= 2*c.capacity {
		c.prune()
	}

	m := membership{typ: k.indexType()}
	addKey(c.byType, m.typ, key)
	for _, entity := range through {
		for _, field := range k.Fields {
			ref := fieldRef{entity: entity.Key(), field: field}
			addKey(c.byField, ref, key)
			m.refs = append(m.refs, ref)
		}
	}
	c.members[key] = m
	c.store.Set(key, append([]V(nil), result...))
}

// InvalidateTypes drops every entry indexed under one of the entity types
func (c *RelationsCache[V]) InvalidateTypes(types ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, typ := range types {
		for key := range c.byType[typ] {
			c.remove(key)
		}
	}
}

// InvalidateEntity drops every entry depending on one of the fields of entity
func (c *RelationsCache[V]) InvalidateEntity(entity Identity, fields ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, field := range fields {
		ref := fieldRef{entity: entity.Key(), field: FoldKey(field)}
		for key := range c.byField[ref] {
			c.remove(key)
		}
	}
}

// Clear drops everything
func (c *RelationsCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.members {
		c.store.Delete(key)
	}
	c.byType = map[string]map[string]struct{}{}
	c.byField = map[fieldRef]map[string]struct{}{}
	c.members = map[string]membership{}
}

// Len number of results held by the store
func (c *RelationsCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Size()
}

// remove unindexes key and deletes it from the store, callers hold the writer lock
func (c *RelationsCache[V]) remove(key string) {
	m, ok := c.members[key]
	if !ok {
		c.logger.Warn(context.Background(), "relation cache key %s is not held", key)
		return
	}

	removeKey(c.byType, m.typ, key)
	for _, ref := range m.refs {
		removeKey(c.byField, ref, key)
	}
	delete(c.members, key)
	c.store.Delete(key)
}

// prune unindexes keys the store evicted or expired on its own
func (c *RelationsCache[V]) prune() {
	for key := range c.members {
		if _, ok := c.store.Get(key); !ok {
			c.remove(key)
		}
	}
}

func addKey[K comparable](index map[K]map[string]struct{}, k K, key string) {
	keys, ok := index[k]
	if !ok {
		keys = map[string]struct{}{}
		index[k] = keys
	}
	keys[key] = struct{}{}
}

func removeKey[K comparable](index map[K]map[string]struct{}, k K, key string) {
	if keys, ok := index[k]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(index, k)
		}
	}
}

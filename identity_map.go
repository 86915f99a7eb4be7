package activeobjects

import (
	"runtime"
	"weak"

	"github.com/puzpuzpuz/xsync/v3"

	"gorm.io/activeobjects/cache"
)

// identityMap holds at most one live handle per identity. Handles are weakly referenced, once the
// last caller drops one a cleanup removes its entry
type identityMap struct {
	handles *xsync.MapOf[cache.Identity, weak.Pointer[Handle]]
}

func newIdentityMap() *identityMap {
	return &identityMap{handles: xsync.NewMapOf[cache.Identity, weak.Pointer[Handle]]()}
}

// load returns the live handle of id, creating it with create when there is none
func (m *identityMap) load(id cache.Identity, create func() *Handle) *Handle {
	if wp, ok := m.handles.Load(id); ok {
		if h := wp.Value(); h != nil {
			return h
		}
	}

	var (
		h       *Handle
		created bool
	)
	m.handles.Compute(id, func(old weak.Pointer[Handle], loaded bool) (weak.Pointer[Handle], bool) {
		if loaded {
			if h = old.Value(); h != nil {
				return old, false
			}
		}
		h, created = create(), true
		return weak.Make(h), false
	})

	if created {
		runtime.AddCleanup(h, m.collect, id)
	}
	return h
}

// collect drops the entry of a collected handle, unless a new handle replaced it meanwhile
func (m *identityMap) collect(id cache.Identity) {
	m.handles.Compute(id, func(old weak.Pointer[Handle], loaded bool) (weak.Pointer[Handle], bool) {
		return old, !loaded || old.Value() == nil
	})
}

// evict forgets id so the next lookup creates a fresh handle
func (m *identityMap) evict(id cache.Identity) {
	m.handles.Delete(id)
}

// Len number of identities held, collected handles may still be counted until their cleanup ran
func (m *identityMap) Len() int {
	return m.handles.Size()
}

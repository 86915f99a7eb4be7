package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityCache_GetPut(t *testing.T) {
	c := NewEntityCache()

	_, ok := c.Get("Name")
	assert.False(t, ok)

	c.Put("Name", "acme")
	v, ok := c.Get("NAME")
	assert.True(t, ok)
	assert.Equal(t, "acme", v)

	c.Put("logo", nil)
	v, ok = c.Get("Logo")
	assert.True(t, ok, "a cached nil is present")
	assert.Nil(t, v)

	c.Remove("logo")
	assert.False(t, c.Has("logo"))
}

func TestEntityCache_FoldsUnicode(t *testing.T) {
	c := NewEntityCache()
	c.Put("École", 1)
	assert.True(t, c.Has("ÉCOLE"))
}

func TestEntityCache_PutIfAbsent(t *testing.T) {
	c := NewEntityCache()
	c.Set("cool", true)

	actual, stored := c.PutIfAbsent("cool", false)
	assert.False(t, stored)
	assert.Equal(t, true, actual)

	actual, stored = c.PutIfAbsent("name", "acme")
	assert.True(t, stored)
	assert.Equal(t, "acme", actual)
}

func TestEntityCache_Dirty(t *testing.T) {
	c := NewEntityCache()
	c.Put("name", "acme")
	c.Set("Cool", true)
	c.MarkDirty("logo")

	assert.Equal(t, []string{"cool", "logo"}, c.DirtyFields())
	assert.True(t, c.IsDirty("COOL"))
	assert.False(t, c.IsDirty("name"))

	s := c.DirtySnapshot()
	assert.Equal(t, map[string]interface{}{"cool": true, "logo": nil}, s.Values)
	assert.Equal(t, []string{"cool", "logo"}, s.Fields())

	c.CommitDirty(s)
	assert.Empty(t, c.DirtyFields())
}

func TestEntityCache_CommitKeepsNewerWrites(t *testing.T) {
	c := NewEntityCache()
	c.Set("cool", true)
	c.Set("name", "acme")

	s := c.DirtySnapshot()
	c.Set("name", "acme corp")
	c.CommitDirty(s)

	assert.Equal(t, []string{"name"}, c.DirtyFields())
}

func TestEntityCache_ClearKeepsDirty(t *testing.T) {
	c := NewEntityCache()
	c.Put("name", "acme")
	c.Set("cool", true)

	c.Clear()
	assert.False(t, c.Has("name"))
	v, ok := c.Get("cool")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	c.ClearDirty()
	assert.Empty(t, c.DirtyFields())
	c.Clear()
	assert.False(t, c.Has("cool"))
}

func TestEntityCache_FlushSet(t *testing.T) {
	c := NewEntityCache()
	c.MarkFlush("Pen")
	c.MarkFlush("Person")
	c.MarkFlush("Pen")

	assert.Equal(t, []string{"Pen", "Person"}, c.FlushSet())
	assert.Equal(t, []string{"Pen", "Person"}, c.TakeFlush())
	assert.Empty(t, c.FlushSet())
	assert.Empty(t, c.TakeFlush())
}

func TestEntityCache_TakeFlushConcurrent(t *testing.T) {
	c := NewEntityCache()
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken = map[string]struct{}{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.MarkFlush(fmt.Sprintf("Type%d", i))
		}(i)
		go func() {
			defer wg.Done()
			types := c.TakeFlush()
			mu.Lock()
			defer mu.Unlock()
			for _, typ := range types {
				taken[typ] = struct{}{}
			}
		}()
	}
	wg.Wait()
	for _, typ := range c.TakeFlush() {
		taken[typ] = struct{}{}
	}

	assert.Len(t, taken, 50, "no mark is lost between reading and clearing the flush set")
}

func TestEntityCache_Reset(t *testing.T) {
	c := NewEntityCache()
	c.Set("cool", true)
	c.MarkFlush("Pen")

	c.Reset()
	assert.False(t, c.Has("cool"))
	assert.Empty(t, c.DirtyFields())
	assert.Empty(t, c.FlushSet())
}

func TestEntityCache_Concurrent(t *testing.T) {
	c := NewEntityCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("counter", i)
			c.Get("counter")
			c.DirtySnapshot()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"counter"}, c.DirtyFields())
}

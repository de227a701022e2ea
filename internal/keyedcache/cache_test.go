package keyedcache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deal struct {
	landingPage string
	title       string
}

func byLandingPage(d *deal) string { return d.landingPage }

func TestCacheSeedAndGet(t *testing.T) {
	c := New([]*deal{
		{landingPage: "/deal/1", title: "one"},
		{landingPage: "/deal/2", title: "two"},
	}, byLandingPage)

	got, ok := c.Get("/deal/2")
	require.True(t, ok)
	assert.Equal(t, "two", got.title)

	missing, ok := c.Get("/deal/404")
	assert.False(t, ok)
	assert.Nil(t, missing)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"/deal/1", "/deal/2"}, c.Keys())
}

func TestCacheUpsertReplacesSameKey(t *testing.T) {
	c := New[*deal](nil, byLandingPage)
	c.Upsert(&deal{landingPage: "/deal/1", title: "v1"})
	c.Upsert(&deal{landingPage: "/deal/1", title: "v2"})

	require.Equal(t, 1, c.Len())
	got, ok := c.Get("/deal/1")
	require.True(t, ok)
	assert.Equal(t, "v2", got.title)
}

func TestCacheDelete(t *testing.T) {
	c := New([]*deal{{landingPage: "/deal/1"}, {landingPage: "/deal/2"}}, byLandingPage)
	c.Delete("/deal/1")
	c.Delete("/deal/404")

	_, ok := c.Get("/deal/1")
	assert.False(t, ok)
	assert.Equal(t, []string{"/deal/2"}, c.Keys())
}

func TestCacheAllIsSnapshot(t *testing.T) {
	c := New([]*deal{{landingPage: "/deal/1"}}, byLandingPage)
	snap := c.All()
	c.Upsert(&deal{landingPage: "/deal/2"})
	assert.Len(t, snap, 1)
	assert.Len(t, c.All(), 2)
}

func TestCacheConcurrentUpserts(t *testing.T) {
	c := New[*deal](nil, byLandingPage)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Upsert(&deal{landingPage: fmt.Sprintf("/deal/%d", i%50), title: fmt.Sprint(w)})
				_, _ = c.Get(fmt.Sprintf("/deal/%d", i%50))
				_ = c.All()
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}

func TestKeyLocksSerialisesSameKey(t *testing.T) {
	locks := NewKeyLocks()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("/deal/1")
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locks.InFlight())
}

func TestKeyLocksUnlockIsIdempotent(t *testing.T) {
	locks := NewKeyLocks()
	unlock := locks.Lock("a")
	other := locks.Lock("b")
	assert.Equal(t, 2, locks.InFlight())
	unlock()
	unlock()
	other()
	assert.Equal(t, 0, locks.InFlight())
}

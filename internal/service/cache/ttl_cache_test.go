package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[int]()
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestTTLCacheGetOrLoad(t *testing.T) {
	c := NewTTLCache[string]()
	var lookups sync.Map
	c.OnLookup = func(_, result string) {
		n, _ := lookups.LoadOrStore(result, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
	}
	var loads atomic.Int32
	release := make(chan struct{})
	load := func() (string, error) {
		loads.Add(1)
		<-release
		return "curve", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad("price", time.Hour, load)
			assert.NoError(t, err)
			assert.Equal(t, "curve", v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	v, err := c.GetOrLoad("price", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, "curve", v)
	assert.Equal(t, int32(1), loads.Load())
	hits, _ := lookups.Load("hit")
	assert.GreaterOrEqual(t, hits.(*atomic.Int32).Load(), int32(1))
}

func TestTTLCacheLoadErrorNotCached(t *testing.T) {
	c := NewTTLCache[int]()
	boom := errors.New("boom")
	_, err := c.GetOrLoad("k", time.Hour, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := c.GetOrLoad("k", time.Hour, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

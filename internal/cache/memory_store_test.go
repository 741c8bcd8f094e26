package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	t.Run("SetNX Claims Once", func(t *testing.T) {
		ok, err := store.SetNX(ctx, "idem:user-1:key-1", "pending", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SetNX(ctx, "idem:user-1:key-1", "other", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		val, found, err := store.Get(ctx, "idem:user-1:key-1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "pending", val)
	})

	t.Run("Entries Expire", func(t *testing.T) {
		ok, _ := store.SetNX(ctx, "short", "v", time.Second)
		require.True(t, ok)

		now = now.Add(2 * time.Second)

		_, found, err := store.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, found)

		ok, _ = store.SetNX(ctx, "short", "v2", time.Second)
		assert.True(t, ok)
	})

	t.Run("Delete And Sweep", func(t *testing.T) {
		store.SetNX(ctx, "a", "1", time.Hour)
		store.SetNX(ctx, "b", "2", time.Millisecond)
		require.NoError(t, store.Delete(ctx, "a"))

		now = now.Add(time.Second)
		assert.GreaterOrEqual(t, store.Sweep(), 1)

		_, found, _ := store.Get(ctx, "a")
		assert.False(t, found)
	})
}

func TestMemoryStore_ConcurrentSetNX(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.SetNX(ctx, "contended", "x", time.Minute); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

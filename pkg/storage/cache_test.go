package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryCache(t *testing.T) {
	t.Run("set_and_get", func(t *testing.T) {
		cache, err := NewInMemoryLRUCache[string]()
		require.NoError(t, err)
		defer cache.Stop()

		cache.Set("k", "v", 0)
		got, ok := cache.Get("k")
		require.True(t, ok)
		require.Equal(t, "v", got)

		_, ok = cache.Get("missing")
		require.False(t, ok)
	})

	t.Run("expired_entry_is_missing", func(t *testing.T) {
		cache, err := NewInMemoryLRUCache[int](WithMaxCacheSize[int](10))
		require.NoError(t, err)
		defer cache.Stop()

		cache.Set("k", 1, 10*time.Millisecond)
		require.Eventually(t, func() bool {
			_, ok := cache.Get("k")
			return !ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("stop_is_idempotent", func(t *testing.T) {
		cache, err := NewInMemoryLRUCache[int]()
		require.NoError(t, err)
		cache.Stop()
		cache.Stop()
	})
}

package vaillant

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Set("key", "value", time.Minute)

		got, ok := cache.Get("key")
		require.True(t, ok)
		assert.Equal(t, "value", got)
	})

	t.Run("missing key", func(t *testing.T) {
		cache := NewMemoryCache()
		_, ok := cache.Get("missing")
		assert.False(t, ok)
	})

	t.Run("expired entry is evicted", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Set("key", "value", time.Nanosecond)
		time.Sleep(5 * time.Millisecond)

		_, ok := cache.Get("key")
		assert.False(t, ok)
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Set("key", "value", 0)

		_, ok := cache.Get("key")
		assert.True(t, ok)
	})

	t.Run("delete and clear", func(t *testing.T) {
		cache := NewMemoryCache()
		cache.Set("a", 1, 0)
		cache.Set("b", 2, 0)

		cache.Delete("a")
		_, ok := cache.Get("a")
		assert.False(t, ok)

		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestThermostatClient_Caching(t *testing.T) {
	t.Run("repeated reads hit the cache", func(t *testing.T) {
		var requests int32

		client, _ := newTestThermostatClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requests, 1)
			w.Write([]byte(thermostatsDataFixture))
		}), WithCache(DefaultCacheConfig()))

		for i := 0; i < 3; i++ {
			devices, err := client.GetThermostatsData(context.Background())
			require.NoError(t, err)
			assert.Len(t, devices, 1)
		}

		assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "only the first read should reach the API")
	})

	t.Run("write invalidates the snapshot", func(t *testing.T) {
		var reads int32

		client, _ := newTestThermostatClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == getThermostatsDataPath {
				atomic.AddInt32(&reads, 1)
				w.Write([]byte(thermostatsDataFixture))
				return
			}
			w.Write([]byte(`{"status":"ok"}`))
		}), WithCache(DefaultCacheConfig()))

		ctx := context.Background()
		_, err := client.GetThermostatsData(ctx)
		require.NoError(t, err)

		require.NoError(t, client.SetSystemMode(ctx, "device_id", "module_id", SystemModeSummer))

		_, err = client.GetThermostatsData(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&reads), "the read after a write must refetch")
	})

	t.Run("failed fetch is not cached", func(t *testing.T) {
		var requests int32

		client, _ := newTestThermostatClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&requests, 1) == 1 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(thermostatsDataFixture))
		}), WithCache(DefaultCacheConfig()))

		ctx := context.Background()
		_, err := client.GetThermostatsData(ctx)
		require.Error(t, err)

		devices, err := client.GetThermostatsData(ctx)
		require.NoError(t, err)
		assert.Len(t, devices, 1)
	})
}

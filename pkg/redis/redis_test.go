package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("disabled skips checks", func(t *testing.T) {
		cfg := Config{}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("enabled requires addr", func(t *testing.T) {
		cfg := Config{Enabled: true}
		assert.Error(t, cfg.Validate())
	})

	t.Run("default prefix", func(t *testing.T) {
		cfg := Config{Enabled: true, Addr: "localhost:6379"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "nlu:", cfg.KeyPrefix)
	})
}

func TestInitAndCache(t *testing.T) {
	mr := miniredis.RunT(t)

	require.NoError(t, Init(Config{Enabled: true, Addr: mr.Addr()}))
	defer Close()
	require.NotNil(t, Client())

	cache := NewCache(Client(), "nlu:")
	ctx := context.Background()

	_, ok, err := cache.GetString(ctx, "weather:上海")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetString(ctx, "weather:上海", "晴", time.Minute))

	val, ok, err := cache.GetString(ctx, "weather:上海")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "晴", val)
	assert.True(t, mr.Exists("nlu:weather:上海"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.GetString(ctx, "weather:上海")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilCache(t *testing.T) {
	var cache *Cache
	assert.False(t, cache.Enabled())

	empty := NewCache((*redis.Client)(nil), "x:")
	_, ok, err := empty.GetString(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, empty.SetString(context.Background(), "k", "v", time.Second))
}

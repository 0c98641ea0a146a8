package codegen

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
)

func countingFactory(builds *atomic.Int64, delay time.Duration) ClientFactory {
	return func(ctx context.Context, appID int64, genType entity.CodeGenType) (*Client, error) {
		if delay > 0 {
			time.Sleep(delay)
		}
		builds.Add(1)
		return NewClient(appID, genType, nil, NewWindow(20, "sys")), nil
	}
}

func TestClientCacheKey(t *testing.T) {
	assert.Equal(t, "42_html", cacheKey(42, entity.CodeGenTypeHTML))
	assert.Equal(t, "7_multi_file", cacheKey(7, entity.CodeGenTypeMultiFile))
}

func TestClientCacheHit(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{}, countingFactory(&builds, 0))

	c1, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	c2, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, int64(1), builds.Load())
}

func TestClientCacheSeparateEntriesPerGenType(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{}, countingFactory(&builds, 0))

	c1, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	c2, err := cache.Get(context.Background(), 1, entity.CodeGenTypeMultiFile)
	require.NoError(t, err)

	assert.NotSame(t, c1, c2)
	assert.Equal(t, int64(2), builds.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestClientCacheSingleFlight(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{}, countingFactory(&builds, 50*time.Millisecond))

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), builds.Load(), "concurrent misses for the same key must build once")
}

func TestClientCacheWriteTTL(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{
		WriteTTL:  30 * time.Minute,
		AccessTTL: 10 * time.Minute,
	}, countingFactory(&builds, 0))

	current := time.Now()
	cache.now = func() time.Time { return current }

	_, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	// 持续访问保持 access 新鲜，但 write TTL 到期后仍然要重建
	for i := 0; i < 7; i++ {
		current = current.Add(5 * time.Minute)
		_, err = cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), builds.Load())
}

func TestClientCacheAccessTTL(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{
		WriteTTL:  30 * time.Minute,
		AccessTTL: 10 * time.Minute,
	}, countingFactory(&builds, 0))

	current := time.Now()
	cache.now = func() time.Time { return current }

	_, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	current = current.Add(11 * time.Minute)
	_, err = cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	assert.Equal(t, int64(2), builds.Load())
}

func TestClientCacheEntryValidAtExactTTL(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{
		WriteTTL:  30 * time.Minute,
		AccessTTL: 10 * time.Minute,
	}, countingFactory(&builds, 0))

	current := time.Now()
	cache.now = func() time.Time { return current }

	_, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	// 刚好到达 access TTL 的条目仍然有效
	current = current.Add(10 * time.Minute)
	_, err = cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	assert.Equal(t, int64(1), builds.Load())

	// 严格超过才淘汰
	current = current.Add(10*time.Minute + time.Second)
	_, err = cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	assert.Equal(t, int64(2), builds.Load())
}

func TestClientCacheSweep(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{
		WriteTTL:  30 * time.Minute,
		AccessTTL: 10 * time.Minute,
	}, countingFactory(&builds, 0))

	current := time.Now()
	cache.now = func() time.Time { return current }

	_, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), 2, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	current = current.Add(11 * time.Minute)
	assert.Equal(t, 2, cache.sweep())
	assert.Equal(t, 0, cache.Len())
}

func TestClientCacheCapacityEviction(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{MaxEntries: 2}, countingFactory(&builds, 0))

	current := time.Now()
	cache.now = func() time.Time { return current }

	_, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	current = current.Add(time.Second)
	_, err = cache.Get(context.Background(), 2, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	current = current.Add(time.Second)
	_, err = cache.Get(context.Background(), 3, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	assert.Equal(t, 2, cache.Len())

	// 最久未访问的 app 1 被淘汰，再取触发重建
	_, err = cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	assert.Equal(t, int64(4), builds.Load())
}

func TestClientCacheInvalidate(t *testing.T) {
	var builds atomic.Int64
	cache := NewClientCache(config.ClientCacheConfig{}, countingFactory(&builds, 0))

	_, err := cache.Get(context.Background(), 1, entity.CodeGenTypeHTML)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), 1, entity.CodeGenTypeProject)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), 2, entity.CodeGenTypeHTML)
	require.NoError(t, err)

	cache.Invalidate(1)
	assert.Equal(t, 1, cache.Len())
}

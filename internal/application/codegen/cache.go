package codegen

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	"ai-codegen-api/pkg/logger"
	"ai-codegen-api/pkg/metrics"
)

// ClientFactory 按应用和生成类型构建 AI 客户端（含窗口重建）
type ClientFactory func(ctx context.Context, appID int64, genType entity.CodeGenType) (*Client, error)

type cacheEntry struct {
	client     *Client
	createdAt  time.Time
	lastAccess time.Time
}

// ClientCache AI 客户端缓存。
//
// 客户端持有对话窗口，重建代价是一次历史回放查询，因此按
// "<appID>_<genType>" 缓存复用。两级过期：距创建超过 writeTTL、
// 或距最后访问超过 accessTTL 的条目被淘汰；容量满时淘汰最久未
// 访问的条目。并发的同键未命中由 singleflight 合并，窗口只重建一次。
type ClientCache struct {
	factory ClientFactory
	group   singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry

	maxEntries    int
	writeTTL      time.Duration
	accessTTL     time.Duration
	sweepInterval time.Duration

	now    func() time.Time
	stopCh chan struct{}
}

// NewClientCache 创建客户端缓存
func NewClientCache(cfg config.ClientCacheConfig, factory ClientFactory) *ClientCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	writeTTL := cfg.WriteTTL
	if writeTTL <= 0 {
		writeTTL = 30 * time.Minute
	}
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 10 * time.Minute
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	c := &ClientCache{
		factory:       factory,
		entries:       make(map[string]*cacheEntry),
		maxEntries:    maxEntries,
		writeTTL:      writeTTL,
		accessTTL:     accessTTL,
		sweepInterval: sweepInterval,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
	return c
}

func cacheKey(appID int64, genType entity.CodeGenType) string {
	return fmt.Sprintf("%d_%s", appID, genType)
}

// Get 获取或构建客户端。同键并发未命中只触发一次构建。
func (c *ClientCache) Get(ctx context.Context, appID int64, genType entity.CodeGenType) (*Client, error) {
	key := cacheKey(appID, genType)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if reason := c.expireReason(e, now); reason == "" {
			e.lastAccess = now
			c.mu.Unlock()
			metrics.ClientCacheLookups.WithLabelValues("hit").Inc()
			return e.client, nil
		} else {
			delete(c.entries, key)
			metrics.ClientCacheEvictions.WithLabelValues(reason).Inc()
			metrics.ClientCacheSize.Set(float64(len(c.entries)))
		}
	}
	c.mu.Unlock()
	metrics.ClientCacheLookups.WithLabelValues("miss").Inc()

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// 可能已被并发请求填充
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.expireReason(e, c.now()) == "" {
			e.lastAccess = c.now()
			c.mu.Unlock()
			return e.client, nil
		}
		c.mu.Unlock()

		client, err := c.factory(ctx, appID, genType)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.evictForCapacity()
		now := c.now()
		c.entries[key] = &cacheEntry{
			client:     client,
			createdAt:  now,
			lastAccess: now,
		}
		metrics.ClientCacheSize.Set(float64(len(c.entries)))
		c.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.FromContext(ctx).Debug("client build shared across concurrent requests", "key", key)
	}
	return v.(*Client), nil
}

// expireReason 判断条目是否过期，返回淘汰原因，未过期返回空串。
// 刚好到达 TTL 的条目仍然有效，严格超过才淘汰。
func (c *ClientCache) expireReason(e *cacheEntry, now time.Time) string {
	if now.Sub(e.createdAt) > c.writeTTL {
		return "write_ttl"
	}
	if now.Sub(e.lastAccess) > c.accessTTL {
		return "access_ttl"
	}
	return ""
}

// evictForCapacity 容量满时淘汰最久未访问的条目，调用方需持锁
func (c *ClientCache) evictForCapacity() {
	if len(c.entries) < c.maxEntries {
		return
	}

	type keyed struct {
		key        string
		lastAccess time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{key: k, lastAccess: e.lastAccess})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].lastAccess.Before(all[j].lastAccess)
	})

	// 腾出一个位置
	for i := 0; i < len(all) && len(c.entries) >= c.maxEntries; i++ {
		delete(c.entries, all[i].key)
		metrics.ClientCacheEvictions.WithLabelValues("capacity").Inc()
	}
	metrics.ClientCacheSize.Set(float64(len(c.entries)))
}

// Invalidate 移除某应用的全部缓存条目（应用删除时调用）
func (c *ClientCache) Invalidate(appID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, genType := range []entity.CodeGenType{
		entity.CodeGenTypeHTML,
		entity.CodeGenTypeMultiFile,
		entity.CodeGenTypeProject,
	} {
		delete(c.entries, cacheKey(appID, genType))
	}
	metrics.ClientCacheSize.Set(float64(len(c.entries)))
}

// Len 返回当前缓存条目数
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper 启动后台清理，周期性淘汰过期条目
func (c *ClientCache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				if n := c.sweep(); n > 0 {
					logger.FromContext(ctx).Debug("client cache sweep", "evicted", n)
				}
			}
		}
	}()
}

// Stop 停止后台清理
func (c *ClientCache) Stop() {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
}

// sweep 淘汰全部过期条目，返回淘汰数量
func (c *ClientCache) sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for k, e := range c.entries {
		if reason := c.expireReason(e, now); reason != "" {
			delete(c.entries, k)
			metrics.ClientCacheEvictions.WithLabelValues(reason).Inc()
			evicted++
		}
	}
	if evicted > 0 {
		metrics.ClientCacheSize.Set(float64(len(c.entries)))
	}
	return evicted
}

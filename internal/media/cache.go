package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

// CachingStore memoizes preview URLs. Entries must expire before the URLs they
// hold, so the cache TTL is kept below the preview TTL by config validation.
type CachingStore struct {
	next    storage.Store
	cache   *expirable.LRU[string, string]
	metrics *metrics.MediaMetrics
}

var _ storage.Store = (*CachingStore)(nil)

func NewCachingStore(next storage.Store, size int, ttl time.Duration, m *metrics.MediaMetrics) *CachingStore {
	if size <= 0 {
		size = 1024
	}
	return &CachingStore{
		next:    next,
		cache:   expirable.NewLRU[string, string](size, nil, ttl),
		metrics: m,
	}
}

func (c *CachingStore) Store(ctx context.Context, bucket string, upload storage.Upload) (string, error) {
	return c.next.Store(ctx, bucket, upload)
}

func (c *CachingStore) PreviewURL(ctx context.Context, bucket, assetID string, opts storage.PreviewOptions) (string, error) {
	key := cacheKey(bucket, assetID, opts.Width, opts.Height)
	if u, ok := c.cache.Get(key); ok {
		c.metrics.IncCache("hit")
		return u, nil
	}
	c.metrics.IncCache("miss")

	u, err := c.next.PreviewURL(ctx, bucket, assetID, opts)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, u)
	return u, nil
}

// Delete removes the asset and drops every cached size of it.
func (c *CachingStore) Delete(ctx context.Context, bucket, assetID string) error {
	err := c.next.Delete(ctx, bucket, assetID)
	c.Invalidate(bucket, assetID)
	return err
}

func (c *CachingStore) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

// Invalidate evicts all cached previews of an asset.
func (c *CachingStore) Invalidate(bucket, assetID string) {
	prefix := bucket + "/" + assetID + "/"
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

func cacheKey(bucket, assetID string, width, height int) string {
	return fmt.Sprintf("%s/%s/%d/%d", bucket, assetID, width, height)
}

package arena

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voyagen/folio/internal/cache"
	"github.com/voyagen/folio/internal/models"
)

// Cache TTLs per resource.
const (
	ttlChannel      = 5 * time.Minute
	ttlContents     = 1 * time.Minute
	ttlAllContents  = 2 * time.Minute
	ttlBlock        = 10 * time.Minute
	ttlSearch       = 2 * time.Minute
	ttlUser         = 10 * time.Minute
	ttlUserChannels = 5 * time.Minute
)

// CachedClient wraps an API with a Redis read-through cache. Concurrent
// misses for the same key share one upstream call. Upstream errors are
// never cached and cache failures never fail a read.
type CachedClient struct {
	inner  API
	cache  *cache.Redis
	group  singleflight.Group
	logger *slog.Logger
}

var _ API = (*CachedClient)(nil)

// NewCachedClient wraps inner with Redis caching. logger may be nil.
func NewCachedClient(inner API, c *cache.Redis, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{inner: inner, cache: c, logger: logger}
}

func (c *CachedClient) GetChannel(ctx context.Context, slugOrID string) (*models.Channel, error) {
	key := "arena:channel:" + slugOrID
	return readThrough(ctx, c, key, ttlChannel, func(ctx context.Context) (*models.Channel, error) {
		return c.inner.GetChannel(ctx, slugOrID)
	})
}

func (c *CachedClient) GetChannelContents(ctx context.Context, slugOrID string, opts ContentsOptions) (*models.ChannelPage, error) {
	key := fmt.Sprintf("arena:contents:%s:%d:%d:%s:%s", slugOrID, opts.Page, opts.Per, opts.Sort, opts.Direction)
	return readThrough(ctx, c, key, ttlContents, func(ctx context.Context) (*models.ChannelPage, error) {
		return c.inner.GetChannelContents(ctx, slugOrID, opts)
	})
}

func (c *CachedClient) GetAllChannelContents(ctx context.Context, slugOrID string, per int) ([]models.Block, error) {
	key := fmt.Sprintf("arena:all:%s:%d", slugOrID, per)
	return readThrough(ctx, c, key, ttlAllContents, func(ctx context.Context) ([]models.Block, error) {
		return c.inner.GetAllChannelContents(ctx, slugOrID, per)
	})
}

func (c *CachedClient) GetBlock(ctx context.Context, id int64) (*models.Block, error) {
	key := "arena:block:" + strconv.FormatInt(id, 10)
	return readThrough(ctx, c, key, ttlBlock, func(ctx context.Context) (*models.Block, error) {
		return c.inner.GetBlock(ctx, id)
	})
}

func (c *CachedClient) SearchChannels(ctx context.Context, query string, opts PageOptions) (*models.ChannelList, error) {
	key := fmt.Sprintf("arena:search:%s:%d:%d", queryHash(query), opts.Page, opts.Per)
	return readThrough(ctx, c, key, ttlSearch, func(ctx context.Context) (*models.ChannelList, error) {
		return c.inner.SearchChannels(ctx, query, opts)
	})
}

func (c *CachedClient) GetUser(ctx context.Context, slug string) (*models.User, error) {
	key := "arena:user:" + slug
	return readThrough(ctx, c, key, ttlUser, func(ctx context.Context) (*models.User, error) {
		return c.inner.GetUser(ctx, slug)
	})
}

func (c *CachedClient) GetUserChannels(ctx context.Context, slug string, opts PageOptions) (*models.ChannelList, error) {
	key := fmt.Sprintf("arena:userchannels:%s:%d:%d", slug, opts.Page, opts.Per)
	return readThrough(ctx, c, key, ttlUserChannels, func(ctx context.Context) (*models.ChannelList, error) {
		return c.inner.GetUserChannels(ctx, slug, opts)
	})
}

// Invalidate drops every cached response for a channel.
func (c *CachedClient) Invalidate(ctx context.Context, slugOrID string) {
	if err := cache.Del(ctx, c.cache, "arena:channel:"+slugOrID); err != nil {
		c.logger.Warn("cache del", "channel", slugOrID, "error", err)
	}
	for _, p := range []string{"arena:contents:" + slugOrID + ":*", "arena:all:" + slugOrID + ":*"} {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			c.logger.Warn("cache del pattern", "pattern", p, "error", err)
		}
	}
}

// readThrough serves key from Redis or fetches it once for all concurrent
// callers. The shared fetch is detached from any one caller's cancellation;
// each caller still returns as soon as its own ctx is done.
func readThrough[T any](ctx context.Context, c *CachedClient, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := cache.Get[T](ctx, c.cache, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("cache get", "key", key, "error", err)
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fresh, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		if err := cache.Set(shared, c.cache, key, fresh, ttl); err != nil {
			c.logger.Warn("cache set", "key", key, "error", err)
		}
		return fresh, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// queryHash keeps free-text search terms out of cache keys.
func queryHash(q string) string {
	h := sha256.Sum256([]byte(q))
	return fmt.Sprintf("%x", h[:8])
}

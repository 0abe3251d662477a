package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-graphwatch/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const subscriptionCacheKeyPrefix = "go-graphwatch::subscription::v1"

// CachedSubscriptionStore wraps a SubscriptionStore with a read-through
// cache. Writes invalidate the cached record so a Get after Put or Delete
// never serves stale state.
type CachedSubscriptionStore struct {
	base  core.SubscriptionStore
	cache repositorycache.CacheService
}

func NewCachedSubscriptionStore(
	base core.SubscriptionStore,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// SubscriptionCacheKey returns the deterministic cache key contract for
// subscription reads: go-graphwatch::subscription::v1::<id> with the id
// URL-path escaped.
func SubscriptionCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: subscription id is required")
	}
	return subscriptionCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (s *CachedSubscriptionStore) Put(ctx context.Context, sub core.Subscription) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	if err := s.base.Put(ctx, sub); err != nil {
		return err
	}
	cacheKey, err := SubscriptionCacheKey(sub.ID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedSubscriptionStore) Get(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	cacheKey, err := SubscriptionCacheKey(id)
	if err != nil {
		return core.Subscription{}, core.ErrSubscriptionNotFound
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Subscription, error) {
		return s.base.Get(ctx, strings.TrimSpace(id))
	})
}

func (s *CachedSubscriptionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	cacheKey, err := SubscriptionCacheKey(id)
	if err != nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey)
}

// ListExpiring always reads through to the base store: the result set
// changes with the clock, so caching it would serve stale windows.
func (s *CachedSubscriptionStore) ListExpiring(ctx context.Context, before time.Time) ([]core.Subscription, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.ListExpiring(ctx, before)
}

var _ core.SubscriptionStore = (*CachedSubscriptionStore)(nil)

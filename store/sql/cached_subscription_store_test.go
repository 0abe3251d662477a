package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-graphwatch/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubSubscriptionStore struct {
	mu          sync.Mutex
	records     map[string]core.Subscription
	getCalls    int
	putCalls    int
	deleteCalls int
}

func newStubSubscriptionStore() *stubSubscriptionStore {
	return &stubSubscriptionStore{records: map[string]core.Subscription{}}
}

func (s *stubSubscriptionStore) Put(_ context.Context, sub core.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	s.records[sub.ID] = sub
	return nil
}

func (s *stubSubscriptionStore) Get(_ context.Context, id string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	record, ok := s.records[id]
	if !ok {
		return core.Subscription{}, core.ErrSubscriptionNotFound
	}
	return record, nil
}

func (s *stubSubscriptionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	delete(s.records, id)
	return nil
}

func (s *stubSubscriptionStore) ListExpiring(_ context.Context, before time.Time) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Subscription{}
	for _, record := range s.records {
		if record.ExpiresAt.Before(before) {
			out = append(out, record)
		}
	}
	return out, nil
}

func newTestSubscriptionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedSubscriptionStore_Get_MissFetchThenHit(t *testing.T) {
	cacheService := newTestSubscriptionCacheService(t)
	base := newStubSubscriptionStore()
	base.records["sub-42"] = core.Subscription{ID: "sub-42", OwnerID: "u1"}

	store, err := NewCachedSubscriptionStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := store.Get(context.Background(), "sub-42"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}

	if _, err := store.Get(context.Background(), "sub-42"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedSubscriptionStore_Put_InvalidatesCachedKey(t *testing.T) {
	cacheService := newTestSubscriptionCacheService(t)
	base := newStubSubscriptionStore()
	base.records["sub-42"] = core.Subscription{ID: "sub-42", OwnerID: "u1"}

	store, err := NewCachedSubscriptionStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := store.Get(context.Background(), "sub-42"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Put(context.Background(), core.Subscription{ID: "sub-42", OwnerID: "u2"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(context.Background(), "sub-42")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if got.OwnerID != "u2" {
		t.Fatalf("expected fresh record after invalidation, got owner %q", got.OwnerID)
	}
}

func TestCachedSubscriptionStore_Delete_InvalidatesCachedKey(t *testing.T) {
	cacheService := newTestSubscriptionCacheService(t)
	base := newStubSubscriptionStore()
	base.records["sub-42"] = core.Subscription{ID: "sub-42", OwnerID: "u1"}

	store, err := NewCachedSubscriptionStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := store.Get(context.Background(), "sub-42"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Delete(context.Background(), "sub-42"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.Get(context.Background(), "sub-42"); !errors.Is(err, core.ErrSubscriptionNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

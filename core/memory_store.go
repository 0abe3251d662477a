package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemorySubscriptionStore is the default SubscriptionStore. It keeps records
// in process memory and is safe for concurrent use. Suitable for tests and
// single-instance deployments; durable deployments should wire a SQL store.
type MemorySubscriptionStore struct {
	mu      sync.Mutex
	records map[string]Subscription
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{records: map[string]Subscription{}}
}

func (m *MemorySubscriptionStore) Put(ctx context.Context, record Subscription) error {
	if m == nil {
		return ErrSubscriptionNotFound
	}
	if err := record.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = map[string]Subscription{}
	}
	m.records[record.ID] = record
	return nil
}

func (m *MemorySubscriptionStore) Get(ctx context.Context, id string) (Subscription, error) {
	if m == nil {
		return Subscription{}, ErrSubscriptionNotFound
	}
	id = strings.TrimSpace(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return record, nil
}

func (m *MemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, strings.TrimSpace(id))
	return nil
}

func (m *MemorySubscriptionStore) ListExpiring(ctx context.Context, before time.Time) ([]Subscription, error) {
	if m == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := make([]Subscription, 0, len(m.records))
	for _, record := range m.records {
		if record.ExpiresAt.Before(before) {
			matches = append(matches, record)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ExpiresAt.Before(matches[j].ExpiresAt)
	})
	return matches, nil
}

var _ SubscriptionStore = (*MemorySubscriptionStore)(nil)

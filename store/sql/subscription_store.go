// Package sqlstore provides the relational SubscriptionStore used by durable
// deployments, built on bun repositories with soft deletes.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-graphwatch/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type SubscriptionStore struct {
	db   *bun.DB
	repo repository.Repository[*subscriptionRecord]
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*subscriptionRecord](db, subscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{
		db:   db,
		repo: repo,
	}, nil
}

// Put inserts or replaces the record keyed by subscription id. A re-created
// subscription that reuses an id resurrects its soft deleted row.
func (s *SubscriptionStore) Put(ctx context.Context, sub core.Subscription) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	sub.ID = strings.TrimSpace(sub.ID)
	sub.OwnerID = strings.TrimSpace(sub.OwnerID)
	if err := sub.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.findByIDTx(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			record := newSubscriptionRecord(sub, now)
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}

		existing.OwnerID = sub.OwnerID
		existing.Resource = sub.Resource
		existing.ChangeType = sub.ChangeType
		existing.ClientState = sub.ClientState
		existing.NotificationURL = sub.NotificationURL
		existing.LifecycleURL = sub.LifecycleURL
		existing.UpdatedAt = now
		existing.DeletedAt = nil
		if sub.ExpiresAt.IsZero() {
			existing.ExpiresAt = nil
		} else {
			expiresAt := sub.ExpiresAt.UTC()
			existing.ExpiresAt = &expiresAt
		}
		if !sub.UpdatedAt.IsZero() {
			existing.UpdatedAt = sub.UpdatedAt.UTC()
		}

		_, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			WhereAllWithDeleted().
			Exec(ctx)
		return updateErr
	})
}

func (s *SubscriptionStore) Get(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.repo == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Subscription{}, core.ErrSubscriptionNotFound
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Subscription{}, err
	}
	if len(records) == 0 {
		return core.Subscription{}, core.ErrSubscriptionNotFound
	}
	return records[0].toDomain(), nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	now := time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model((*subscriptionRecord)(nil)).
		Set("deleted_at = ?", now).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func (s *SubscriptionStore) ListExpiring(ctx context.Context, before time.Time) ([]core.Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.deleted_at IS NULL").
				Where("?TableAlias.expires_at IS NOT NULL").
				Where("?TableAlias.expires_at < ?", before.UTC())
		}),
		repository.OrderBy("expires_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Subscription, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *SubscriptionStore) findByIDTx(ctx context.Context, tx bun.Tx, id string) (*subscriptionRecord, error) {
	record := &subscriptionRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		WhereAllWithDeleted().
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return nil, nil
	}
	return record, nil
}

var _ core.SubscriptionStore = (*SubscriptionStore)(nil)

package sqlstore

import (
	"time"

	"github.com/goliatone/go-graphwatch/core"
	"github.com/uptrace/bun"
)

type subscriptionRecord struct {
	bun.BaseModel `bun:"table:graph_subscriptions,alias:gs"`

	ID              string     `bun:"id,pk"`
	OwnerID         string     `bun:"owner_id,notnull"`
	Resource        string     `bun:"resource,notnull"`
	ChangeType      string     `bun:"change_type,notnull"`
	ClientState     string     `bun:"client_state,notnull"`
	NotificationURL string     `bun:"notification_url,notnull"`
	LifecycleURL    string     `bun:"lifecycle_url"`
	ExpiresAt       *time.Time `bun:"expires_at,nullzero"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete"`
}

func newSubscriptionRecord(sub core.Subscription, now time.Time) *subscriptionRecord {
	record := &subscriptionRecord{
		ID:              sub.ID,
		OwnerID:         sub.OwnerID,
		Resource:        sub.Resource,
		ChangeType:      sub.ChangeType,
		ClientState:     sub.ClientState,
		NotificationURL: sub.NotificationURL,
		LifecycleURL:    sub.LifecycleURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !sub.ExpiresAt.IsZero() {
		expiresAt := sub.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	if !sub.CreatedAt.IsZero() {
		record.CreatedAt = sub.CreatedAt.UTC()
	}
	if !sub.UpdatedAt.IsZero() {
		record.UpdatedAt = sub.UpdatedAt.UTC()
	}
	return record
}

func (r *subscriptionRecord) toDomain() core.Subscription {
	if r == nil {
		return core.Subscription{}
	}
	sub := core.Subscription{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Resource:        r.Resource,
		ChangeType:      r.ChangeType,
		ClientState:     r.ClientState,
		NotificationURL: r.NotificationURL,
		LifecycleURL:    r.LifecycleURL,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		sub.ExpiresAt = r.ExpiresAt.UTC()
	}
	return sub
}

// Package query exposes message-driven read handlers over the subscription
// store.
package query

import (
	"context"
	"time"

	"github.com/goliatone/go-graphwatch/core"
)

type SubscriptionReader interface {
	Get(ctx context.Context, id string) (core.Subscription, error)
	ListExpiring(ctx context.Context, before time.Time) ([]core.Subscription, error)
}

type GetSubscriptionQuery struct {
	reader SubscriptionReader
}

func NewGetSubscriptionQuery(reader SubscriptionReader) *GetSubscriptionQuery {
	return &GetSubscriptionQuery{reader: reader}
}

func (q *GetSubscriptionQuery) Query(ctx context.Context, msg GetSubscriptionMessage) (core.Subscription, error) {
	if q == nil || q.reader == nil {
		return core.Subscription{}, queryDependencyError("query: subscription reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Subscription{}, queryWrapValidation(err, "query: invalid get subscription message")
	}
	return q.reader.Get(ctx, msg.SubscriptionID)
}

type ListExpiringSubscriptionsQuery struct {
	reader SubscriptionReader
}

func NewListExpiringSubscriptionsQuery(reader SubscriptionReader) *ListExpiringSubscriptionsQuery {
	return &ListExpiringSubscriptionsQuery{reader: reader}
}

func (q *ListExpiringSubscriptionsQuery) Query(
	ctx context.Context,
	msg ListExpiringSubscriptionsMessage,
) ([]core.Subscription, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: subscription reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, queryWrapValidation(err, "query: invalid list expiring message")
	}
	return q.reader.ListExpiring(ctx, msg.Before)
}

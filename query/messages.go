package query

import (
	"fmt"
	"strings"
	"time"
)

const (
	TypeGetSubscription           = "graphwatch.query.subscription.get"
	TypeListExpiringSubscriptions = "graphwatch.query.subscription.list_expiring"
)

type GetSubscriptionMessage struct {
	SubscriptionID string
}

func (GetSubscriptionMessage) Type() string { return TypeGetSubscription }

func (m GetSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return fmt.Errorf("query: subscription id is required")
	}
	return nil
}

type ListExpiringSubscriptionsMessage struct {
	Before time.Time
}

func (ListExpiringSubscriptionsMessage) Type() string { return TypeListExpiringSubscriptions }

func (m ListExpiringSubscriptionsMessage) Validate() error {
	if m.Before.IsZero() {
		return fmt.Errorf("query: before timestamp is required")
	}
	return nil
}

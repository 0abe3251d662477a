package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-graphwatch/core"
)

const (
	TypeSubscribe         = "graphwatch.command.subscription.subscribe"
	TypeRenewSubscription = "graphwatch.command.subscription.renew"
	TypeUnsubscribe       = "graphwatch.command.subscription.cancel"
)

type SubscribeMessage struct {
	Request core.CreateRequest
}

func (SubscribeMessage) Type() string { return TypeSubscribe }

func (m SubscribeMessage) Validate() error {
	if strings.TrimSpace(m.Request.OwnerID) == "" {
		return fmt.Errorf("command: owner id is required")
	}
	if err := m.Request.Credential.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type RenewSubscriptionMessage struct {
	Notification core.LifecycleNotification
}

func (RenewSubscriptionMessage) Type() string { return TypeRenewSubscription }

func (m RenewSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.Notification.SubscriptionID) == "" {
		return fmt.Errorf("command: subscription id is required")
	}
	return nil
}

type UnsubscribeMessage struct {
	Request core.DeleteRequest
}

func (UnsubscribeMessage) Type() string { return TypeUnsubscribe }

func (m UnsubscribeMessage) Validate() error {
	if strings.TrimSpace(m.Request.SubscriptionID) == "" {
		return fmt.Errorf("command: subscription id is required")
	}
	if err := m.Request.Credential.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

// Package command exposes message-driven handlers over the lifecycle
// manager's mutating surface, for hosts that wire a command bus.
package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-graphwatch/core"
)

type MutatingService interface {
	Create(ctx context.Context, req core.CreateRequest) (core.CreateResult, error)
	Renew(ctx context.Context, notification core.LifecycleNotification) error
	Delete(ctx context.Context, req core.DeleteRequest) error
}

type SubscribeCommand struct {
	service MutatingService
}

func NewSubscribeCommand(service MutatingService) *SubscribeCommand {
	return &SubscribeCommand{service: service}
}

func (c *SubscribeCommand) Execute(ctx context.Context, msg SubscribeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscribe service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid subscribe message")
	}
	out, err := c.service.Create(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RenewSubscriptionCommand struct {
	service MutatingService
}

func NewRenewSubscriptionCommand(service MutatingService) *RenewSubscriptionCommand {
	return &RenewSubscriptionCommand{service: service}
}

func (c *RenewSubscriptionCommand) Execute(ctx context.Context, msg RenewSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: renew service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid renew message")
	}
	return c.service.Renew(ctx, msg.Notification)
}

type UnsubscribeCommand struct {
	service MutatingService
}

func NewUnsubscribeCommand(service MutatingService) *UnsubscribeCommand {
	return &UnsubscribeCommand{service: service}
}

func (c *UnsubscribeCommand) Execute(ctx context.Context, msg UnsubscribeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: unsubscribe service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid unsubscribe message")
	}
	return c.service.Delete(ctx, msg.Request)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

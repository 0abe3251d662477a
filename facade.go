package graphwatch

import (
	"fmt"

	graphwatchcommand "github.com/goliatone/go-graphwatch/command"
	"github.com/goliatone/go-graphwatch/core"
	graphwatchquery "github.com/goliatone/go-graphwatch/query"
)

// CommandService is what the command handlers need from a service
// implementation.
type CommandService interface {
	graphwatchcommand.MutatingService
}

type Commands struct {
	Subscribe         *graphwatchcommand.SubscribeCommand
	RenewSubscription *graphwatchcommand.RenewSubscriptionCommand
	Unsubscribe       *graphwatchcommand.UnsubscribeCommand
}

type Queries struct {
	GetSubscription *graphwatchquery.GetSubscriptionQuery
	ListExpiring    *graphwatchquery.ListExpiringSubscriptionsQuery
}

// Facade bundles the command and query handlers for a single service so
// callers can wire a message bus without assembling handlers one by one.
type Facade struct {
	service  CommandService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	subscriptionReader graphwatchquery.SubscriptionReader
}

func WithSubscriptionReader(reader graphwatchquery.SubscriptionReader) FacadeOption {
	return func(options *facadeOptions) {
		options.subscriptionReader = reader
	}
}

func NewFacade(service CommandService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("graphwatch: command service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.subscriptionReader
	if reader == nil {
		reader = resolveSubscriptionReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Subscribe:         graphwatchcommand.NewSubscribeCommand(service),
		RenewSubscription: graphwatchcommand.NewRenewSubscriptionCommand(service),
		Unsubscribe:       graphwatchcommand.NewUnsubscribeCommand(service),
	}
	facade.queries = Queries{
		GetSubscription: graphwatchquery.NewGetSubscriptionQuery(reader),
		ListExpiring:    graphwatchquery.NewListExpiringSubscriptionsQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveSubscriptionReader(service CommandService) graphwatchquery.SubscriptionReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(graphwatchquery.SubscriptionReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	return provider.Dependencies().SubscriptionStore
}

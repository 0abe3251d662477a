package graphwatch

import "github.com/goliatone/go-graphwatch/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type CredentialProvider = core.CredentialProvider
type GraphClient = core.GraphClient
type SubscriptionStore = core.SubscriptionStore
type ClientStateFactory = core.ClientStateFactory

type Credential = core.Credential
type ProfileSummary = core.ProfileSummary
type Subscription = core.Subscription
type SubscriptionHandle = core.SubscriptionHandle
type LifecycleNotification = core.LifecycleNotification

type CreateRequest = core.CreateRequest
type CreateResult = core.CreateResult

type DeleteRequest = core.DeleteRequest

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithCredentialProvider = core.WithCredentialProvider
	WithGraphClient        = core.WithGraphClient
	WithSubscriptionStore  = core.WithSubscriptionStore
	WithClientStateFactory = core.WithClientStateFactory
	WithClock              = core.WithClock
	WithRenewalTouch       = core.WithRenewalTouch
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

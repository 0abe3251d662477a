package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// CredentialProvider resolves the delegated credentials of a user by id.
// Implementations return ErrCredentialsNotFound (wrapped or bare) when the
// user never authorized on this instance or the session expired; the
// lifecycle manager treats that as a non-fatal drop.
type CredentialProvider interface {
	Lookup(ctx context.Context, userID string) (Credential, error)
}

type CredentialProviderFunc func(ctx context.Context, userID string) (Credential, error)

func (fn CredentialProviderFunc) Lookup(ctx context.Context, userID string) (Credential, error) {
	if fn == nil {
		return Credential{}, ErrCredentialsNotFound
	}
	return fn(ctx, userID)
}

type CreateSubscriptionInput struct {
	Resource        string
	ChangeType      string
	ClientState     string
	NotificationURL string
	LifecycleURL    string
	ExpiresAt       time.Time
}

// GraphClient is the remote API client facade. All calls may fail with a
// transport or authorization error; the facade owns serialization and HTTP
// semantics, the Service owns orchestration.
type GraphClient interface {
	GetProfile(ctx context.Context, cred Credential) (ProfileSummary, error)
	CreateSubscription(ctx context.Context, cred Credential, in CreateSubscriptionInput) (SubscriptionHandle, error)
	RenewSubscription(ctx context.Context, cred Credential, subscriptionID string, expiresAt time.Time) error
	DeleteSubscription(ctx context.Context, cred Credential, subscriptionID string) error
}

// SubscriptionStore maps subscription id to subscription record. Put, Get
// and Delete must be atomic per key under concurrent access: a Get either
// sees the full record or ErrSubscriptionNotFound, never a partial write.
// Callers re-read before mutating; there is no update-in-place beyond Put.
type SubscriptionStore interface {
	Put(ctx context.Context, sub Subscription) error
	Get(ctx context.Context, id string) (Subscription, error)
	Delete(ctx context.Context, id string) error
	ListExpiring(ctx context.Context, before time.Time) ([]Subscription, error)
}

// ClientStateFactory mints the per-subscription shared secret set at
// creation. Must be cryptographically random and unique per call.
type ClientStateFactory func() string

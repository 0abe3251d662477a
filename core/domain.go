package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSubscriptionNotFound = errors.New("core: subscription not found")
	ErrCredentialsNotFound  = errors.New("core: credentials not found")
)

// Credential is a delegated access token obtained on behalf of a signed-in
// user, scoped to that user's permissions. It is treated as opaque beyond
// what the remote transport needs to authorize a call.
type Credential struct {
	UserID      string
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

func (c Credential) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("core: credential access token is required")
	}
	return nil
}

// Subscription is the locally persisted record of a live remote
// subscription. ID is assigned by the remote API and is the store's primary
// key. OwnerID is immutable for the life of the record: renewal always uses
// the original owner's credentials, never those of whoever triggered the
// notification.
type Subscription struct {
	ID              string
	OwnerID         string
	Resource        string
	ChangeType      string
	ClientState     string
	NotificationURL string
	LifecycleURL    string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("core: subscription id is required")
	}
	if strings.TrimSpace(s.OwnerID) == "" {
		return fmt.Errorf("core: subscription owner id is required")
	}
	return nil
}

// ProfileSummary is the minimal profile projection fetched alongside
// subscription creation.
type ProfileSummary struct {
	DisplayName       string
	JobTitle          string
	UserPrincipalName string
}

// Lifecycle event subtypes delivered by the remote API. The tag travels on
// the event envelope, not the notification payload.
type LifecycleEvent string

const (
	LifecycleEventReauthorizationRequired LifecycleEvent = "reauthorizationRequired"
	LifecycleEventMissed                  LifecycleEvent = "missed"
	LifecycleEventSubscriptionRemoved     LifecycleEvent = "subscriptionRemoved"
)

// LifecycleNotification is a decoded lifecycle event: the remote API telling
// us a subscription needs reauthorization, is about to expire, or was
// removed. Distinct from a change notification.
type LifecycleNotification struct {
	SubscriptionID        string
	Event                 LifecycleEvent
	ClientState           string
	Resource              string
	SubscriptionExpiresAt *time.Time
}

func (n LifecycleNotification) Validate() error {
	if strings.TrimSpace(n.SubscriptionID) == "" {
		return fmt.Errorf("core: notification subscription id is required")
	}
	return nil
}

// SubscriptionHandle is the remote API's view of a created subscription,
// returned by the create call.
type SubscriptionHandle struct {
	ID         string
	Resource   string
	ChangeType string
	ExpiresAt  time.Time
}

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type CreateRequest struct {
	OwnerID    string
	Credential Credential
}

type CreateResult struct {
	Profile      ProfileSummary
	Subscription Subscription
}

type DeleteRequest struct {
	SubscriptionID string
	Credential     Credential
}

// Create provisions a remote subscription on behalf of the owner and
// persists the record. The profile fetch and the remote create run
// concurrently; the flow resolves only once both complete, and the store is
// written only when both succeed. OwnerID is taken from the request, never
// from the profile response.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreateResult, error) {
	if s == nil || s.graphClient == nil || s.subscriptionStore == nil {
		return CreateResult{}, s.mapError(fmt.Errorf("core: create requires a graph client and a subscription store"))
	}

	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return CreateResult{}, s.mapError(fmt.Errorf("core: owner id is required"))
	}
	if err := req.Credential.Validate(); err != nil {
		return CreateResult{}, s.mapError(err)
	}
	host := strings.TrimSpace(s.config.NotificationHost)
	if host == "" {
		return CreateResult{}, s.mapError(fmt.Errorf("core: notification_host is required"))
	}

	startedAt := s.clock()
	clientState := s.newClientState()
	expiresAt := startedAt.Add(s.createWindow())

	input := CreateSubscriptionInput{
		Resource:        s.config.Subscription.Resource,
		ChangeType:      s.config.Subscription.ChangeType,
		ClientState:     clientState,
		NotificationURL: callbackURL(host, "/graph/notifications"),
		LifecycleURL:    callbackURL(host, "/graph/lifecycle"),
		ExpiresAt:       expiresAt,
	}

	type profileOutcome struct {
		profile ProfileSummary
		err     error
	}
	type createOutcome struct {
		handle SubscriptionHandle
		err    error
	}

	// Both calls are independent; neither blocks the other. Buffered
	// channels keep the losing goroutine from leaking when one fails.
	profileCh := make(chan profileOutcome, 1)
	createCh := make(chan createOutcome, 1)
	go func() {
		profile, err := s.graphClient.GetProfile(ctx, req.Credential)
		profileCh <- profileOutcome{profile: profile, err: err}
	}()
	go func() {
		handle, err := s.graphClient.CreateSubscription(ctx, req.Credential, input)
		createCh <- createOutcome{handle: handle, err: err}
	}()

	fetched := <-profileCh
	created := <-createCh

	if fetched.err != nil || created.err != nil {
		cause := fetched.err
		if cause == nil {
			cause = created.err
		}
		err := s.mapError(creationError(cause))
		s.observeOperation(ctx, startedAt, "subscription_create", err, map[string]any{
			"owner_id": ownerID,
			"resource": input.Resource,
		})
		return CreateResult{}, err
	}

	subscriptionID := strings.TrimSpace(created.handle.ID)
	if subscriptionID == "" {
		err := s.mapError(creationError(fmt.Errorf("core: remote create returned an empty subscription id")))
		s.observeOperation(ctx, startedAt, "subscription_create", err, map[string]any{
			"owner_id": ownerID,
			"resource": input.Resource,
		})
		return CreateResult{}, err
	}

	recordExpiry := created.handle.ExpiresAt
	if recordExpiry.IsZero() {
		recordExpiry = expiresAt
	}
	record := Subscription{
		ID:              subscriptionID,
		OwnerID:         ownerID,
		Resource:        valueOr(created.handle.Resource, input.Resource),
		ChangeType:      valueOr(created.handle.ChangeType, input.ChangeType),
		ClientState:     clientState,
		NotificationURL: input.NotificationURL,
		LifecycleURL:    input.LifecycleURL,
		ExpiresAt:       recordExpiry,
		CreatedAt:       startedAt,
		UpdatedAt:       startedAt,
	}
	if err := s.subscriptionStore.Put(ctx, record); err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "subscription_create", mapped, map[string]any{
			"subscription_id": subscriptionID,
			"owner_id":        ownerID,
		})
		return CreateResult{}, mapped
	}

	s.observeOperation(ctx, startedAt, "subscription_create", nil, map[string]any{
		"subscription_id": subscriptionID,
		"owner_id":        ownerID,
		"resource":        record.Resource,
		"expires_at":      record.ExpiresAt.Format(time.RFC3339),
	})
	return CreateResult{Profile: fetched.profile, Subscription: record}, nil
}

// Renew handles a decoded lifecycle notification. Unknown subscriptions and
// missing credentials are expected steady-state noise: both drop the
// notification with a log line and a nil error, so the ingress can always
// acknowledge. A remote failure is returned mapped; no local state changes,
// since the remote API remains the source of truth for expiry.
func (s *Service) Renew(ctx context.Context, notification LifecycleNotification) error {
	if s == nil || s.graphClient == nil || s.subscriptionStore == nil {
		return s.mapError(fmt.Errorf("core: renew requires a graph client and a subscription store"))
	}
	if s.credentialProvider == nil {
		return s.mapError(fmt.Errorf("core: renew requires a credential provider"))
	}

	subscriptionID := strings.TrimSpace(notification.SubscriptionID)
	if subscriptionID == "" {
		return s.mapError(fmt.Errorf("core: notification subscription id is required"))
	}

	startedAt := s.clock()
	record, err := s.subscriptionStore.Get(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.logInfo(ctx, "lifecycle notification for unknown subscription dropped", map[string]any{
				"subscription_id": subscriptionID,
				"event":           string(notification.Event),
			})
			s.recordCounter(ctx, "graphwatch.subscription_renew.unknown", 1, map[string]string{
				"event": string(notification.Event),
			})
			return nil
		}
		return s.mapError(err)
	}

	cred, err := s.credentialProvider.Lookup(ctx, record.OwnerID)
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			s.logWarn(ctx, "renewal dropped: no delegated credentials for owner", map[string]any{
				"subscription_id": subscriptionID,
				"owner_id":        record.OwnerID,
				"event":           string(notification.Event),
			})
			s.recordCounter(ctx, "graphwatch.subscription_renew.no_credentials", 1, map[string]string{
				"event": string(notification.Event),
			})
			return nil
		}
		return s.mapError(err)
	}

	expiresAt := startedAt.Add(s.renewWindow())
	if err := s.graphClient.RenewSubscription(ctx, cred, record.ID, expiresAt); err != nil {
		mapped := s.mapError(remoteCallError(err, "renew subscription"))
		s.observeOperation(ctx, startedAt, "subscription_renew", mapped, map[string]any{
			"subscription_id": record.ID,
			"owner_id":        record.OwnerID,
			"event":           string(notification.Event),
		})
		return mapped
	}

	if s.touchOnRenew {
		record.ExpiresAt = expiresAt
		record.UpdatedAt = startedAt
		if err := s.subscriptionStore.Put(ctx, record); err != nil {
			// Advisory only; the renewal itself succeeded.
			s.logWarn(ctx, "failed to persist advisory expiry after renewal", map[string]any{
				"subscription_id": record.ID,
				"error":           err.Error(),
			})
		}
	}

	s.observeOperation(ctx, startedAt, "subscription_renew", nil, map[string]any{
		"subscription_id": record.ID,
		"owner_id":        record.OwnerID,
		"event":           string(notification.Event),
		"expires_at":      expiresAt.Format(time.RFC3339),
	})
	return nil
}

// Delete removes the remote subscription and, only once that succeeds, the
// store entry. A remote failure leaves the record in place so a later retry
// or manual cleanup can reconcile.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) error {
	if s == nil || s.graphClient == nil || s.subscriptionStore == nil {
		return s.mapError(fmt.Errorf("core: delete requires a graph client and a subscription store"))
	}

	subscriptionID := strings.TrimSpace(req.SubscriptionID)
	if subscriptionID == "" {
		return s.mapError(fmt.Errorf("core: subscription id is required"))
	}
	if err := req.Credential.Validate(); err != nil {
		return s.mapError(err)
	}

	startedAt := s.clock()
	if err := s.graphClient.DeleteSubscription(ctx, req.Credential, subscriptionID); err != nil {
		mapped := s.mapError(remoteCallError(err, "delete subscription"))
		s.observeOperation(ctx, startedAt, "subscription_delete", mapped, map[string]any{
			"subscription_id": subscriptionID,
		})
		return mapped
	}
	if err := s.subscriptionStore.Delete(ctx, subscriptionID); err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return s.mapError(err)
	}

	s.observeOperation(ctx, startedAt, "subscription_delete", nil, map[string]any{
		"subscription_id": subscriptionID,
	})
	return nil
}

func (s *Service) createWindow() time.Duration {
	window := s.config.Subscription.CreateWindow
	if window <= 0 {
		window = defaultCreateWindow
	}
	return s.clampWindow(window)
}

func (s *Service) renewWindow() time.Duration {
	window := s.config.Subscription.RenewWindow
	if window <= 0 {
		window = defaultRenewWindow
	}
	return s.clampWindow(window)
}

func (s *Service) clampWindow(window time.Duration) time.Duration {
	max := s.config.Subscription.MaxWindow
	if max > 0 && window > max {
		return max
	}
	return window
}

func callbackURL(host string, path string) string {
	return strings.TrimSuffix(strings.TrimSpace(host), "/") + path
}

func valueOr(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

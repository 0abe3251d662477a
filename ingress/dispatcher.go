package ingress

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-graphwatch/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Renewer is the lifecycle manager surface the dispatcher drives.
type Renewer interface {
	Renew(ctx context.Context, notification core.LifecycleNotification) error
}

// Verifier checks that a decoded notification belongs to this instance,
// typically by comparing the client state against the stored record.
type Verifier interface {
	Verify(ctx context.Context, notification core.LifecycleNotification) error
}

// ClaimStore deduplicates redelivered events. Claim returns accepted=false
// when the key was already claimed and is still leased or complete.
type ClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

// Ack is what the transport returns to the remote API. StatusCode is 200
// whenever processing was attempted, malformed payloads included, so the
// remote side never disables delivery over a response code.
type Ack struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type Dispatcher struct {
	Renewer  Renewer
	Verifier Verifier
	Claims   ClaimStore
	Logger   core.Logger
	ClaimTTL time.Duration

	// WaitForRenewal makes Dispatch run the renewal before returning the
	// ack instead of in the background. Used by tests and by deployments
	// that want delivery retries on renewal failure.
	WaitForRenewal bool

	Now func() time.Time
}

func NewDispatcher(renewer Renewer, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		Renewer:  renewer,
		Claims:   NewInMemoryClaimStore(),
		Logger:   glog.Ensure(nil),
		ClaimTTL: 10 * time.Minute,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range options {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

type DispatcherOption func(*Dispatcher)

func WithVerifier(verifier Verifier) DispatcherOption {
	return func(d *Dispatcher) {
		d.Verifier = verifier
	}
}

func WithClaimStore(store ClaimStore) DispatcherOption {
	return func(d *Dispatcher) {
		d.Claims = store
	}
}

func WithLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.Logger = glog.Ensure(logger)
	}
}

func WithClaimTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.ClaimTTL = ttl
	}
}

func WithSynchronousRenewal(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.WaitForRenewal = enabled
	}
}

// Dispatch decodes the envelope, deduplicates it, and triggers a renewal.
// The ack always carries 200 once processing was attempted: malformed
// payloads, verification failures, and renewal failures are logged and
// acknowledged so the remote side never disables delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) (Ack, error) {
	if d == nil || d.Renewer == nil {
		return Ack{StatusCode: http.StatusInternalServerError},
			ingressInternal("ingress: dispatcher requires a renewer", nil)
	}

	envelope, err := DecodeEnvelope(body)
	if err != nil {
		return d.dropMalformed(envelope, err), nil
	}
	notification, err := DecodeNotification(envelope)
	if err != nil {
		return d.dropMalformed(envelope, err), nil
	}

	metadata := map[string]any{
		"event_id":        envelope.ID,
		"event_type":      string(notification.Event),
		"subscription_id": notification.SubscriptionID,
	}

	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, notification); err != nil {
			d.logger().Warn("lifecycle notification failed verification, dropped",
				"subscription_id", notification.SubscriptionID,
				"event_id", envelope.ID,
				"error", err.Error(),
			)
			metadata["dropped"] = "verification"
			return Ack{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
		}
	}

	claimID := ""
	if d.Claims != nil {
		key := dedupeKey(envelope, notification)
		var accepted bool
		claimID, accepted, err = d.Claims.Claim(ctx, key, d.claimTTL())
		if err != nil {
			d.logger().Error("dedupe claim failed, proceeding without dedupe",
				"event_id", envelope.ID,
				"subscription_id", notification.SubscriptionID,
				"error", err.Error(),
			)
			claimID = ""
		} else if !accepted {
			metadata["deduped"] = true
			return Ack{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
		}
	}

	if d.WaitForRenewal {
		d.renew(ctx, notification, claimID)
	} else {
		go d.renew(context.WithoutCancel(ctx), notification, claimID)
	}

	return Ack{Accepted: true, StatusCode: http.StatusOK, Metadata: metadata}, nil
}

func (d *Dispatcher) dropMalformed(envelope EventEnvelope, cause error) Ack {
	d.logger().Error("malformed lifecycle payload, dropped",
		"event_id", envelope.ID,
		"error", cause.Error(),
	)
	return Ack{
		StatusCode: http.StatusOK,
		Metadata:   map[string]any{"dropped": "malformed"},
	}
}

func (d *Dispatcher) renew(ctx context.Context, notification core.LifecycleNotification, claimID string) {
	err := d.Renewer.Renew(ctx, notification)
	if d.Claims != nil && claimID != "" {
		if err != nil {
			if failErr := d.Claims.Fail(ctx, claimID, err, time.Time{}); failErr != nil {
				d.logger().Error("failed to release dedupe claim",
					"claim_id", claimID,
					"error", failErr.Error(),
				)
			}
		} else if completeErr := d.Claims.Complete(ctx, claimID); completeErr != nil {
			d.logger().Error("failed to complete dedupe claim",
				"claim_id", claimID,
				"error", completeErr.Error(),
			)
		}
	}
	if err != nil {
		d.logger().Error("subscription renewal failed",
			"subscription_id", notification.SubscriptionID,
			"event", string(notification.Event),
			"error", err.Error(),
		)
	}
}

func (d *Dispatcher) logger() core.Logger {
	if d != nil && d.Logger != nil {
		return d.Logger
	}
	return glog.Ensure(nil)
}

func (d *Dispatcher) claimTTL() time.Duration {
	if d != nil && d.ClaimTTL > 0 {
		return d.ClaimTTL
	}
	return 10 * time.Minute
}

func dedupeKey(envelope EventEnvelope, notification core.LifecycleNotification) string {
	if id := strings.TrimSpace(envelope.ID); id != "" {
		return "event:" + id
	}
	return "subscription:" + notification.SubscriptionID + ":" + string(notification.Event)
}

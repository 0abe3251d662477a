package ingress

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-graphwatch/core"
)

// ClientStateVerifier compares the client state carried by a notification
// against the stored record. Unknown subscriptions pass through: the
// lifecycle manager owns that drop and its logging. A present but mismatched
// client state means the notification was not minted by this instance.
type ClientStateVerifier struct {
	Store core.SubscriptionStore
}

func (v ClientStateVerifier) Verify(ctx context.Context, notification core.LifecycleNotification) error {
	if v.Store == nil {
		return ingressInternal("ingress: verifier requires a subscription store", nil)
	}
	if notification.ClientState == "" {
		return nil
	}
	record, err := v.Store.Get(ctx, notification.SubscriptionID)
	if err != nil {
		if errors.Is(err, core.ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}
	if record.ClientState != notification.ClientState {
		return fmt.Errorf("ingress: client state mismatch for subscription %s", notification.SubscriptionID)
	}
	return nil
}

var _ Verifier = ClientStateVerifier{}

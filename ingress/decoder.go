package ingress

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-graphwatch/core"
)

// EventEnvelope is the wire shape of a delivered lifecycle event. The event
// subtype travels on the envelope's type field; the notification payload
// rides in data.
type EventEnvelope struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Type   string          `json:"type"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data"`
}

type notificationPayload struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	Resource       string `json:"resource"`
	ExpirationTime string `json:"subscriptionExpirationDateTime"`
}

// DecodeEnvelope parses a raw request body into an envelope.
func DecodeEnvelope(body []byte) (EventEnvelope, error) {
	var envelope EventEnvelope
	if len(body) == 0 {
		return EventEnvelope{}, ingressBadInput("ingress: empty event body", nil)
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return EventEnvelope{}, ingressWrapError(
			err,
			goerrors.CategoryBadInput,
			"ingress: decode event envelope",
			http.StatusBadRequest,
			core.ServiceErrorMalformedNotification,
			nil,
		)
	}
	return envelope, nil
}

// DecodeNotification extracts the lifecycle notification from an envelope.
// A missing subscription id or unparseable payload is malformed input; an
// unrecognized event type is not, since the remote API may add subtypes.
func DecodeNotification(envelope EventEnvelope) (core.LifecycleNotification, error) {
	if len(envelope.Data) == 0 {
		return core.LifecycleNotification{}, ingressBadInput("ingress: event envelope has no data", map[string]any{
			"event_id": envelope.ID,
		})
	}

	var payload notificationPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return core.LifecycleNotification{}, ingressWrapError(
			err,
			goerrors.CategoryBadInput,
			"ingress: decode lifecycle notification",
			http.StatusBadRequest,
			core.ServiceErrorMalformedNotification,
			map[string]any{"event_id": envelope.ID},
		)
	}

	notification := core.LifecycleNotification{
		SubscriptionID: strings.TrimSpace(payload.SubscriptionID),
		Event:          core.LifecycleEvent(strings.TrimSpace(envelope.Type)),
		ClientState:    payload.ClientState,
		Resource:       payload.Resource,
	}
	if raw := strings.TrimSpace(payload.ExpirationTime); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			expiresAt := parsed.UTC()
			notification.SubscriptionExpiresAt = &expiresAt
		}
	}
	if err := notification.Validate(); err != nil {
		return core.LifecycleNotification{}, ingressWrapError(
			err,
			goerrors.CategoryBadInput,
			"ingress: incomplete lifecycle notification",
			http.StatusBadRequest,
			core.ServiceErrorMalformedNotification,
			map[string]any{"event_id": envelope.ID},
		)
	}
	return notification, nil
}

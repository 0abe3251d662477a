package ingress

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-graphwatch/core"
)

type recordingRenewer struct {
	mu            sync.Mutex
	err           error
	notifications []core.LifecycleNotification
}

func (r *recordingRenewer) Renew(ctx context.Context, notification core.LifecycleNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification)
	return r.err
}

func (r *recordingRenewer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

func lifecycleBody(eventID, eventType, subscriptionID, clientState string) []byte {
	return []byte(`{
		"id": "` + eventID + `",
		"source": "/subscriptions",
		"type": "` + eventType + `",
		"time": "2026-08-30T10:00:00Z",
		"data": {
			"subscriptionId": "` + subscriptionID + `",
			"clientState": "` + clientState + `",
			"resource": "me",
			"subscriptionExpirationDateTime": "2026-08-30T11:00:00Z"
		}
	}`)
}

func TestDispatcher_AcknowledgesAndRenews(t *testing.T) {
	renewer := &recordingRenewer{}
	dispatcher := NewDispatcher(renewer, WithSynchronousRenewal(true))

	ack, err := dispatcher.Dispatch(context.Background(), lifecycleBody("evt-1", "reauthorizationRequired", "sub-42", "state-1"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !ack.Accepted || ack.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200 ack, got %+v", ack)
	}
	if renewer.count() != 1 {
		t.Fatalf("expected one renewal, got %d", renewer.count())
	}
	notification := renewer.notifications[0]
	if notification.SubscriptionID != "sub-42" {
		t.Fatalf("expected subscription sub-42, got %q", notification.SubscriptionID)
	}
	if notification.Event != core.LifecycleEventReauthorizationRequired {
		t.Fatalf("expected reauthorization event, got %q", notification.Event)
	}
	if notification.SubscriptionExpiresAt == nil {
		t.Fatalf("expected expiration hint to decode")
	}
}

func TestDispatcher_MalformedBodyStillAcknowledged(t *testing.T) {
	renewer := &recordingRenewer{}
	dispatcher := NewDispatcher(renewer, WithSynchronousRenewal(true))

	for name, body := range map[string][]byte{
		"empty":       nil,
		"not json":    []byte("nope"),
		"no data":     []byte(`{"id":"evt-1","type":"missed"}`),
		"no sub id":   []byte(`{"id":"evt-1","type":"missed","data":{"clientState":"s"}}`),
		"bad payload": []byte(`{"id":"evt-1","type":"missed","data":[1,2]}`),
	} {
		ack, err := dispatcher.Dispatch(context.Background(), body)
		if err != nil {
			t.Fatalf("%s: expected malformed payload to stay internal, got %v", name, err)
		}
		if ack.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, ack.StatusCode)
		}
		if ack.Accepted {
			t.Fatalf("%s: expected dropped payload not to be marked accepted", name)
		}
		if ack.Metadata["dropped"] != "malformed" {
			t.Fatalf("%s: expected malformed drop metadata, got %+v", name, ack.Metadata)
		}
	}
	if renewer.count() != 0 {
		t.Fatalf("expected no renewals for malformed input")
	}
}

type signalingRenewer struct {
	recordingRenewer
	once sync.Once
	done chan struct{}
}

func (r *signalingRenewer) Renew(ctx context.Context, notification core.LifecycleNotification) error {
	err := r.recordingRenewer.Renew(ctx, notification)
	r.once.Do(func() { close(r.done) })
	return err
}

type failingClaimStore struct{}

func (failingClaimStore) Claim(context.Context, string, time.Duration) (string, bool, error) {
	return "", false, errors.New("claim backend unavailable")
}

func (failingClaimStore) Complete(context.Context, string) error {
	return nil
}

func (failingClaimStore) Fail(context.Context, string, error, time.Time) error {
	return nil
}

func TestDispatcher_BackgroundRenewalRuns(t *testing.T) {
	renewer := &signalingRenewer{done: make(chan struct{})}
	dispatcher := NewDispatcher(renewer)

	ack, err := dispatcher.Dispatch(context.Background(), lifecycleBody("evt-1", "missed", "sub-42", "s"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !ack.Accepted || ack.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200 ack, got %+v", ack)
	}

	select {
	case <-renewer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background renewal")
	}
	if renewer.count() != 1 {
		t.Fatalf("expected one background renewal, got %d", renewer.count())
	}
	if renewer.notifications[0].SubscriptionID != "sub-42" {
		t.Fatalf("unexpected subscription id %q", renewer.notifications[0].SubscriptionID)
	}
}

func TestDispatcher_ClaimFailureStillAcknowledged(t *testing.T) {
	renewer := &recordingRenewer{}
	dispatcher := NewDispatcher(renewer,
		WithSynchronousRenewal(true),
		WithClaimStore(failingClaimStore{}),
	)

	ack, err := dispatcher.Dispatch(context.Background(), lifecycleBody("evt-1", "missed", "sub-42", "s"))
	if err != nil {
		t.Fatalf("expected claim failure to stay internal, got %v", err)
	}
	if !ack.Accepted || ack.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200 ack, got %+v", ack)
	}
	if renewer.count() != 1 {
		t.Fatalf("expected renewal to proceed without dedupe, got %d", renewer.count())
	}
}

func TestDispatcher_RenewalFailureStillAcknowledged(t *testing.T) {
	renewer := &recordingRenewer{err: errors.New("remote down")}
	dispatcher := NewDispatcher(renewer, WithSynchronousRenewal(true))

	ack, err := dispatcher.Dispatch(context.Background(), lifecycleBody("evt-1", "missed", "sub-42", "s"))
	if err != nil {
		t.Fatalf("expected failure to stay internal, got %v", err)
	}
	if !ack.Accepted || ack.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted ack despite renewal failure, got %+v", ack)
	}
}

func TestDispatcher_DeduplicatesByEventID(t *testing.T) {
	renewer := &recordingRenewer{}
	dispatcher := NewDispatcher(renewer, WithSynchronousRenewal(true))

	body := lifecycleBody("evt-1", "missed", "sub-42", "s")
	if _, err := dispatcher.Dispatch(context.Background(), body); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	ack, err := dispatcher.Dispatch(context.Background(), body)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if deduped, ok := ack.Metadata["deduped"].(bool); !ok || !deduped {
		t.Fatalf("expected dedupe metadata, got %+v", ack.Metadata)
	}
	if renewer.count() != 1 {
		t.Fatalf("expected single renewal after redelivery, got %d", renewer.count())
	}
}

func TestDispatcher_FailedRenewalReleasesClaim(t *testing.T) {
	renewer := &recordingRenewer{err: errors.New("remote down")}
	claims := NewInMemoryClaimStore()
	dispatcher := NewDispatcher(renewer, WithSynchronousRenewal(true), WithClaimStore(claims))

	body := lifecycleBody("evt-1", "missed", "sub-42", "s")
	if _, err := dispatcher.Dispatch(context.Background(), body); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	renewer.err = nil
	ack, err := dispatcher.Dispatch(context.Background(), body)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if _, deduped := ack.Metadata["deduped"]; deduped {
		t.Fatalf("expected retry-ready claim to accept redelivery")
	}
	if renewer.count() != 2 {
		t.Fatalf("expected a second renewal attempt, got %d", renewer.count())
	}
}

func TestDispatcher_VerifierDropStillAcknowledged(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemorySubscriptionStore()
	if err := store.Put(ctx, core.Subscription{ID: "sub-42", OwnerID: "u1", ClientState: "expected"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	renewer := &recordingRenewer{}
	dispatcher := NewDispatcher(renewer,
		WithSynchronousRenewal(true),
		WithVerifier(ClientStateVerifier{Store: store}),
	)

	ack, err := dispatcher.Dispatch(ctx, lifecycleBody("evt-1", "missed", "sub-42", "forged"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !ack.Accepted || ack.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted ack for dropped notification, got %+v", ack)
	}
	if ack.Metadata["dropped"] != "verification" {
		t.Fatalf("expected verification drop metadata, got %+v", ack.Metadata)
	}
	if renewer.count() != 0 {
		t.Fatalf("expected no renewal for mismatched client state")
	}

	if _, err := dispatcher.Dispatch(ctx, lifecycleBody("evt-2", "missed", "sub-42", "expected")); err != nil {
		t.Fatalf("dispatch with valid state: %v", err)
	}
	if renewer.count() != 1 {
		t.Fatalf("expected renewal for matching client state, got %d", renewer.count())
	}
}

func TestInMemoryClaimStore_CompletedKeyExpires(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := NewInMemoryClaimStore()
	store.Now = func() time.Time { return now }

	claimID, accepted, err := store.Claim(context.Background(), "event:evt-1", time.Minute)
	if err != nil || !accepted {
		t.Fatalf("claim: accepted=%v err=%v", accepted, err)
	}
	if err := store.Complete(context.Background(), claimID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, accepted, _ := store.Claim(context.Background(), "event:evt-1", time.Minute); accepted {
		t.Fatalf("expected completed key to stay claimed inside ttl")
	}

	now = now.Add(2 * time.Minute)
	if _, accepted, _ := store.Claim(context.Background(), "event:evt-1", time.Minute); !accepted {
		t.Fatalf("expected expired key to be claimable again")
	}
}

package core

import (
	"context"
	"sync"
	"time"
)

type fakeGraphClient struct {
	mu sync.Mutex

	profile    ProfileSummary
	profileErr error

	createHandle SubscriptionHandle
	createErr    error
	createCalls  []CreateSubscriptionInput

	renewErr   error
	renewCalls []renewCall

	deleteErr   error
	deleteCalls []string
}

type renewCall struct {
	subscriptionID string
	expiresAt      time.Time
}

func (f *fakeGraphClient) GetProfile(ctx context.Context, cred Credential) (ProfileSummary, error) {
	return f.profile, f.profileErr
}

func (f *fakeGraphClient) CreateSubscription(ctx context.Context, cred Credential, in CreateSubscriptionInput) (SubscriptionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, in)
	return f.createHandle, f.createErr
}

func (f *fakeGraphClient) RenewSubscription(ctx context.Context, cred Credential, subscriptionID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewCalls = append(f.renewCalls, renewCall{subscriptionID: subscriptionID, expiresAt: expiresAt})
	return f.renewErr
}

func (f *fakeGraphClient) DeleteSubscription(ctx context.Context, cred Credential, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, subscriptionID)
	return f.deleteErr
}

type fakeCredentialProvider struct {
	credentials map[string]Credential
	err         error
	lookups     []string
}

func (f *fakeCredentialProvider) Lookup(ctx context.Context, userID string) (Credential, error) {
	f.lookups = append(f.lookups, userID)
	if f.err != nil {
		return Credential{}, f.err
	}
	cred, ok := f.credentials[userID]
	if !ok {
		return Credential{}, ErrCredentialsNotFound
	}
	return cred, nil
}

type capturingMetrics struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]float64
}

func newCapturingMetrics() *capturingMetrics {
	return &capturingMetrics{
		counters:   map[string]int64{},
		histograms: map[string]float64{},
	}
}

func (m *capturingMetrics) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

func (m *capturingMetrics) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[name] = value
}

func (m *capturingMetrics) counterValue(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func testCredential(userID string) Credential {
	return Credential{
		UserID:      userID,
		AccessToken: "token-" + userID,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func testClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestService(t interface{ Fatalf(string, ...any) }, client GraphClient, store SubscriptionStore, creds CredentialProvider, options ...Option) *Service {
	base := []Option{
		WithGraphClient(client),
		WithSubscriptionStore(store),
		WithCredentialProvider(creds),
		WithClientStateFactory(func() string { return "state-fixed" }),
	}
	svc, err := NewService(Config{NotificationHost: "https://app.example"}, append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

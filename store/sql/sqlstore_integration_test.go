package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-graphwatch/core"
	graphmigrations "github.com/goliatone/go-graphwatch/migrations"
	sqlstore "github.com/goliatone/go-graphwatch/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-graphwatch-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"graph_subscriptions",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "graph_subscriptions" {
		t.Fatalf("expected graph_subscriptions table, got %q", tableName)
	}
}

func TestSubscriptionStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.SubscriptionStore()
	if store == nil {
		t.Fatalf("expected subscription store from factory")
	}

	expiresAt := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	record := core.Subscription{
		ID:              "sub-42",
		OwnerID:         "u1",
		Resource:        "me",
		ChangeType:      "updated",
		ClientState:     "state-1",
		NotificationURL: "https://app.example/graph/notifications",
		LifecycleURL:    "https://app.example/graph/lifecycle",
		ExpiresAt:       expiresAt,
	}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "sub-42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerID != "u1" || got.ClientState != "state-1" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("expected expiry %s, got %s", expiresAt, got.ExpiresAt)
	}

	if _, err := store.Get(ctx, "sub-99"); !errors.Is(err, core.ErrSubscriptionNotFound) {
		t.Fatalf("expected not-found sentinel, got %v", err)
	}

	record.OwnerID = "u2"
	record.ExpiresAt = expiresAt.Add(time.Hour)
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("put update: %v", err)
	}
	updated, err := store.Get(ctx, "sub-42")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if updated.OwnerID != "u2" {
		t.Fatalf("expected updated owner, got %q", updated.OwnerID)
	}

	if err := store.Delete(ctx, "sub-42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "sub-42"); !errors.Is(err, core.ErrSubscriptionNotFound) {
		t.Fatalf("expected record gone after delete, got %v", err)
	}
	if err := store.Delete(ctx, "sub-42"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestSubscriptionStore_PutResurrectsDeletedRow(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromDB(client.DB())
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.SubscriptionStore()

	record := core.Subscription{ID: "sub-42", OwnerID: "u1", Resource: "me", ChangeType: "updated", ClientState: "s1"}
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "sub-42"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	record.ClientState = "s2"
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("put after delete: %v", err)
	}
	got, err := store.Get(ctx, "sub-42")
	if err != nil {
		t.Fatalf("get resurrected: %v", err)
	}
	if got.ClientState != "s2" {
		t.Fatalf("expected fresh client state, got %q", got.ClientState)
	}
}

func TestSubscriptionStore_ListExpiring(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.SubscriptionStore()

	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	for _, record := range []core.Subscription{
		{ID: "sub-late", OwnerID: "u1", Resource: "me", ChangeType: "updated", ClientState: "s", ExpiresAt: base.Add(72 * time.Hour)},
		{ID: "sub-soon", OwnerID: "u1", Resource: "me", ChangeType: "updated", ClientState: "s", ExpiresAt: base.Add(time.Hour)},
		{ID: "sub-mid", OwnerID: "u2", Resource: "me", ChangeType: "updated", ClientState: "s", ExpiresAt: base.Add(24 * time.Hour)},
	} {
		if err := store.Put(ctx, record); err != nil {
			t.Fatalf("put %s: %v", record.ID, err)
		}
	}

	expiring, err := store.ListExpiring(ctx, base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("list expiring: %v", err)
	}
	if len(expiring) != 2 {
		t.Fatalf("expected two expiring records, got %d", len(expiring))
	}
	if expiring[0].ID != "sub-soon" || expiring[1].ID != "sub-mid" {
		t.Fatalf("expected soonest-first ordering, got %s then %s", expiring[0].ID, expiring[1].ID)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:graphwatch-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = graphmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != graphmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, graphmigrations.WithValidationTargets(graphmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

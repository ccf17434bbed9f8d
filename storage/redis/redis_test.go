package redis

import (
	"context"
	"testing"
	"time"

	"github.com/ggoodman/dialogflow-agent-go/storage"
	"github.com/redis/go-redis/v9"
)

const testSession = "projects/foo/agent/sessions/bar"

func TestRedisStorage(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   2,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.FlushDB(ctx)

	s, err := New(Config{Client: client})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, s) })
	t.Run("GetNonExistent", func(t *testing.T) { testGetNonExistent(t, s) })
	t.Run("TTL", func(t *testing.T) { testTTL(t, s) })
	t.Run("Namespaces", func(t *testing.T) { testNamespaces(t, s) })
	t.Run("DeleteKey", func(t *testing.T) { testDeleteKey(t, s) })
	t.Run("DeleteNamespace", func(t *testing.T) { testDeleteNamespace(t, s) })
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() accepted a nil client")
	}
}

func testSetAndGet(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	data := []byte(`{"score": 3}`)

	if err := s.Set(ctx, "score", data, storage.WithSession(testSession)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	item, err := s.Get(ctx, "score", storage.WithSession(testSession))
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item == nil || string(item.Data) != string(data) {
		t.Fatalf("Get() = %v, want %s", item, data)
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreatedAt not recorded")
	}
}

func testGetNonExistent(t *testing.T, s storage.Storage) {
	item, err := s.Get(context.Background(), "never-set", storage.WithSession(testSession))
	if err != nil {
		t.Fatalf("Get() of absent key errored: %v", err)
	}
	if item != nil {
		t.Fatal("Get() of absent key returned an item")
	}
}

func testTTL(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	ttl := 200 * time.Millisecond

	if err := s.Set(ctx, "ephemeral", []byte("x"), storage.WithSession(testSession), storage.WithTTL(ttl)); err != nil {
		t.Fatalf("Set() with TTL failed: %v", err)
	}

	item, err := s.Get(ctx, "ephemeral", storage.WithSession(testSession))
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item == nil {
		t.Fatal("Get() returned nil before expiration")
	}
	if item.ExpiresAt == nil {
		t.Fatal("ExpiresAt not recorded")
	}

	time.Sleep(ttl + 100*time.Millisecond)

	item, err = s.Get(ctx, "ephemeral", storage.WithSession(testSession))
	if err != nil {
		t.Fatalf("Get() failed after expiration: %v", err)
	}
	if item != nil {
		t.Fatal("Get() returned item after expiration")
	}
}

func testNamespaces(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	if err := s.Set(ctx, "state", []byte("session"), storage.WithSession(testSession)); err != nil {
		t.Fatalf("Set() session failed: %v", err)
	}
	if err := s.Set(ctx, "state", []byte("user"), storage.WithUser("fb-user-123")); err != nil {
		t.Fatalf("Set() user failed: %v", err)
	}
	if err := s.Set(ctx, "state", []byte("global")); err != nil {
		t.Fatalf("Set() global failed: %v", err)
	}

	item, err := s.Get(ctx, "state", storage.WithSession(testSession))
	if err != nil || item == nil || string(item.Data) != "session" {
		t.Fatalf("session Get() = %v, %v", item, err)
	}
	item, err = s.Get(ctx, "state", storage.WithUser("fb-user-123"))
	if err != nil || item == nil || string(item.Data) != "user" {
		t.Fatalf("user Get() = %v, %v", item, err)
	}
	item, err = s.Get(ctx, "state")
	if err != nil || item == nil || string(item.Data) != "global" {
		t.Fatalf("global Get() = %v, %v", item, err)
	}
}

func testDeleteKey(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	if err := s.Set(ctx, "doomed", []byte("x"), storage.WithSession(testSession)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := s.Delete(ctx, storage.WithSession(testSession), storage.WithKey("doomed")); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	item, err := s.Get(ctx, "doomed", storage.WithSession(testSession))
	if err != nil {
		t.Fatalf("Get() failed after deletion: %v", err)
	}
	if item != nil {
		t.Fatal("key survived deletion")
	}
}

func testDeleteNamespace(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	session := "projects/foo/agent/sessions/wipe-me"

	for _, key := range []string{"score", "question", "turns"} {
		if err := s.Set(ctx, key, []byte("data"), storage.WithSession(session)); err != nil {
			t.Fatalf("Set(%s) failed: %v", key, err)
		}
	}
	if err := s.Set(ctx, "score", []byte("keep"), storage.WithSession(testSession)); err != nil {
		t.Fatalf("Set() other session failed: %v", err)
	}

	if err := s.Delete(ctx, storage.WithSession(session)); err != nil {
		t.Fatalf("Delete() namespace failed: %v", err)
	}

	for _, key := range []string{"score", "question", "turns"} {
		item, err := s.Get(ctx, key, storage.WithSession(session))
		if err != nil {
			t.Fatalf("Get(%s) failed after wipe: %v", key, err)
		}
		if item != nil {
			t.Fatalf("key %s survived namespace wipe", key)
		}
	}
	item, err := s.Get(ctx, "score", storage.WithSession(testSession))
	if err != nil || item == nil {
		t.Fatalf("other session lost data: %v, %v", item, err)
	}
}

// Demonstrates the storage namespaces a fulfillment service typically uses:
// global data shared by every conversation, per-user data keyed by the
// platform user id and per-session data keyed by the Dialogflow session
// path.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ggoodman/dialogflow-agent-go/storage"
	"github.com/ggoodman/dialogflow-agent-go/storage/memory"
)

func main() {
	store, err := memory.New(1000)
	if err != nil {
		log.Fatal("Failed to create storage:", err)
	}
	defer store.Close()

	ctx := context.Background()
	session := "projects/my-agent/agent/sessions/6f9619ff"
	userID := "fb-user-123"

	// Example 1: global storage, visible to every conversation
	fmt.Println("=== Global Storage ===")
	err = store.Set(ctx, "menu-of-the-day", []byte(`{"special": "margherita"}`))
	if err != nil {
		log.Fatal("Failed to set menu:", err)
	}

	item, err := store.Get(ctx, "menu-of-the-day")
	if err != nil {
		log.Fatal("Failed to get menu:", err)
	}
	if item != nil {
		fmt.Printf("Menu: %s\n", string(item.Data))
	}

	// Example 2: per-user storage, keyed by the platform user id
	fmt.Println("\n=== User Storage ===")
	err = store.Set(ctx, "preferences", []byte(`{"size": "large", "language": "en"}`),
		storage.WithUser(userID))
	if err != nil {
		log.Fatal("Failed to set user preferences:", err)
	}

	item, err = store.Get(ctx, "preferences", storage.WithUser(userID))
	if err != nil {
		log.Fatal("Failed to get user preferences:", err)
	}
	if item != nil {
		fmt.Printf("User %s preferences: %s\n", userID, string(item.Data))
	}

	// Example 3: per-session storage, keyed by the Dialogflow session path
	fmt.Println("\n=== Session Storage ===")
	err = store.Set(ctx, "best_score", []byte("4"), storage.WithSession(session))
	if err != nil {
		log.Fatal("Failed to set session state:", err)
	}

	item, err = store.Get(ctx, "best_score", storage.WithSession(session))
	if err != nil {
		log.Fatal("Failed to get session state:", err)
	}
	if item != nil {
		fmt.Printf("Best score this session: %s\n", string(item.Data))
	}

	// Example 4: TTL, for caches that should outlive a turn but not a day
	fmt.Println("\n=== TTL Example ===")
	err = store.Set(ctx, "otp", []byte("714212"),
		storage.WithUser(userID), storage.WithTTL(2*time.Second))
	if err != nil {
		log.Fatal("Failed to set OTP:", err)
	}

	item, err = store.Get(ctx, "otp", storage.WithUser(userID))
	if err != nil {
		log.Fatal("Failed to get OTP:", err)
	}
	if item != nil {
		fmt.Printf("OTP (immediate): %s\n", string(item.Data))
	}

	fmt.Println("Waiting 3 seconds for TTL expiration...")
	time.Sleep(3 * time.Second)

	item, err = store.Get(ctx, "otp", storage.WithUser(userID))
	if err != nil {
		log.Fatal("Failed to get OTP after expiration:", err)
	}
	if item == nil {
		fmt.Println("OTP expired (as expected)")
	}

	// Example 5: the same key means different things per namespace
	fmt.Println("\n=== Namespace Isolation ===")
	key := "state"

	store.Set(ctx, key, []byte("global-value"))
	store.Set(ctx, key, []byte("user-value"), storage.WithUser(userID))
	store.Set(ctx, key, []byte("session-value"), storage.WithSession(session))

	global, _ := store.Get(ctx, key)
	user, _ := store.Get(ctx, key, storage.WithUser(userID))
	sess, _ := store.Get(ctx, key, storage.WithSession(session))

	fmt.Printf("Global %q: %s\n", key, string(global.Data))
	fmt.Printf("User %q: %s\n", key, string(user.Data))
	fmt.Printf("Session %q: %s\n", key, string(sess.Data))

	// Example 6: deleting one key, then wiping a whole session
	fmt.Println("\n=== Deletion Examples ===")

	err = store.Delete(ctx, storage.WithUser(userID), storage.WithKey(key))
	if err != nil {
		log.Fatal("Failed to delete user key:", err)
	}
	fmt.Println("Deleted user key")

	err = store.Delete(ctx, storage.WithSession(session))
	if err != nil {
		log.Fatal("Failed to wipe session:", err)
	}
	fmt.Println("Wiped session namespace")

	user, _ = store.Get(ctx, key, storage.WithUser(userID))
	sess, _ = store.Get(ctx, key, storage.WithSession(session))
	if user == nil {
		fmt.Println("User key gone")
	}
	if sess == nil {
		fmt.Println("Session data gone")
	}

	global, _ = store.Get(ctx, key)
	if global != nil {
		fmt.Printf("Global %q still exists: %s\n", key, string(global.Data))
	}
}

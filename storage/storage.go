// Package storage persists conversation state that outlives a single webhook
// turn. Contexts expire with their lifespan; anything that must survive
// longer (user profiles, scores, opt-in flags) goes through a Storage
// backend, namespaced by the Dialogflow session path or a platform user id.
package storage

import (
	"context"
	"time"
)

// Storage is the backend contract for per-session and per-user data.
type Storage interface {
	// Get retrieves the item stored under key within the selected namespace.
	// It returns nil when the key is absent or expired; errors are reserved
	// for backend failures.
	Get(ctx context.Context, key string, opts ...Option) (*Item, error)

	// Set stores data under key within the selected namespace.
	Set(ctx context.Context, key string, data []byte, opts ...Option) error

	// Delete removes data within the selected namespace. Without WithKey it
	// clears the whole namespace, which is how a session is wiped when a
	// conversation ends.
	Delete(ctx context.Context, opts ...Option) error

	// Close releases backend resources.
	Close() error
}

// Item is one stored value with its metadata.
type Item struct {
	Data      []byte
	CreatedAt time.Time
	ExpiresAt *time.Time // nil = no expiration
}

// IsExpired reports whether the item's TTL has passed.
func (it *Item) IsExpired() bool {
	return it.ExpiresAt != nil && time.Now().After(*it.ExpiresAt)
}

// Option configures a storage operation.
type Option func(*Options)

// Options is the resolved configuration of one storage operation.
type Options struct {
	Namespace Namespace      // nil = global namespace
	Key       *string        // for Delete: a specific key instead of the namespace
	TTL       *time.Duration // optional time-to-live
}

// Namespace scopes storage operations. The zero namespace (nil) is global.
type Namespace interface {
	namespace()
}

// SessionNamespace scopes data to one Dialogflow session, identified by its
// full session path ("projects/<project>/agent/sessions/<session>").
type SessionNamespace struct {
	Session string
}

func (SessionNamespace) namespace() {}

// UserNamespace scopes data to a platform user, so it survives across
// sessions of the same user.
type UserNamespace struct {
	UserID string
}

func (UserNamespace) namespace() {}

// WithSession scopes the operation to a Dialogflow session path.
func WithSession(session string) Option {
	return func(opts *Options) {
		opts.Namespace = SessionNamespace{Session: session}
	}
}

// WithUser scopes the operation to a platform user id.
func WithUser(userID string) Option {
	return func(opts *Options) {
		opts.Namespace = UserNamespace{UserID: userID}
	}
}

// WithKey selects a specific key for Delete. Without it, Delete clears the
// whole namespace.
func WithKey(key string) Option {
	return func(opts *Options) {
		opts.Key = &key
	}
}

// WithTTL sets a time-to-live for the stored data.
func WithTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.TTL = &ttl
	}
}

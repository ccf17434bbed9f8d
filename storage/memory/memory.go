// Package memory implements storage.Storage in process memory, backed by an
// LRU cache from github.com/hashicorp/golang-lru/v2. It suits development
// and single-instance deployments; state is lost on restart and not shared
// across replicas.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ggoodman/dialogflow-agent-go/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Storage is an in-memory storage.Storage. Capacity is bounded by the LRU
// size; the least recently used session data is evicted first.
type Storage struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *storage.Item]
	stop  chan struct{}
	once  sync.Once
}

// New builds an in-memory store holding at most maxItems entries. A
// background sweep drops expired items so abandoned sessions do not pin LRU
// slots until eviction.
func New(maxItems int) (*Storage, error) {
	cache, err := lru.New[string, *storage.Item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}

	s := &Storage{
		cache: cache,
		stop:  make(chan struct{}),
	}
	go s.sweepExpired()
	return s, nil
}

// Get implements storage.Storage.
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.Item, error) {
	options := &storage.Options{}
	for _, opt := range opts {
		opt(options)
	}
	cacheKey := buildKey(options.Namespace, key)

	s.mu.RLock()
	item, ok := s.cache.Get(cacheKey)
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if item.IsExpired() {
		s.mu.Lock()
		s.cache.Remove(cacheKey)
		s.mu.Unlock()
		return nil, nil
	}
	return item, nil
}

// Set implements storage.Storage.
func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	options := &storage.Options{}
	for _, opt := range opts {
		opt(options)
	}
	cacheKey := buildKey(options.Namespace, key)

	now := time.Now()
	item := &storage.Item{
		Data:      make([]byte, len(data)),
		CreatedAt: now,
	}
	copy(item.Data, data)
	if options.TTL != nil {
		expiresAt := now.Add(*options.TTL)
		item.ExpiresAt = &expiresAt
	}

	s.mu.Lock()
	s.cache.Add(cacheKey, item)
	s.mu.Unlock()
	return nil
}

// Delete implements storage.Storage.
func (s *Storage) Delete(ctx context.Context, opts ...storage.Option) error {
	options := &storage.Options{}
	for _, opt := range opts {
		opt(options)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if options.Key != nil {
		s.cache.Remove(buildKey(options.Namespace, *options.Key))
		return nil
	}
	prefix := namespacePrefix(options.Namespace)
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Remove(key)
		}
	}
	return nil
}

// Close drops all entries and stops the expiry sweep.
func (s *Storage) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}

func buildKey(namespace storage.Namespace, key string) string {
	return namespacePrefix(namespace) + "key:" + key
}

func namespacePrefix(namespace storage.Namespace) string {
	switch ns := namespace.(type) {
	case storage.SessionNamespace:
		return "session:" + ns.Session + ":"
	case storage.UserNamespace:
		return "user:" + ns.UserID + ":"
	default:
		return "global:"
	}
}

func (s *Storage) sweepExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		now := time.Now()
		for _, key := range s.cache.Keys() {
			if item, ok := s.cache.Peek(key); ok {
				if item.ExpiresAt != nil && now.After(*item.ExpiresAt) {
					s.cache.Remove(key)
				}
			}
		}
		s.mu.Unlock()
	}
}

var _ storage.Storage = (*Storage)(nil)

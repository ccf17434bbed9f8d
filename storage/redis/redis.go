// Package redis implements storage.Storage on Redis, for multi-instance
// deployments where session state must be shared across webhook replicas.
// TTLs map to native Redis expiry.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ggoodman/dialogflow-agent-go/storage"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Config configures the Redis store.
type Config struct {
	// Client is the Redis client to use.
	Client *redis.Client

	// KeyPrefix namespaces all keys written by this store.
	// Default: "dfagent:".
	KeyPrefix string
}

// EnvConfig configures the Redis store from the environment.
type EnvConfig struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// Password sent with AUTH when non-empty. ENV: REDIS_PASSWORD
	Password string `env:"REDIS_PASSWORD,optional"`
	// DB selects the logical database. ENV: REDIS_DB
	DB int `env:"REDIS_DB,default=0"`
	// KeyPrefix namespaces all keys. ENV: STORAGE_KEY_PREFIX
	KeyPrefix string `env:"STORAGE_KEY_PREFIX,default=dfagent:"`
}

// Storage implements storage.Storage on Redis.
type Storage struct {
	client    *redis.Client
	keyPrefix string
}

// storedItem is the on-wire envelope for one value.
type storedItem struct {
	Data      []byte     `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// New builds a Redis-backed store.
func New(config Config) (*Storage, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "dfagent:"
	}
	return &Storage{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// NewFromEnv builds a Redis-backed store from REDIS_* environment variables
// and verifies connectivity with a ping.
func NewFromEnv(ctx context.Context) (*Storage, error) {
	var cfg EnvConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding redis config: %w", err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(Config{Client: client, KeyPrefix: cfg.KeyPrefix})
}

// Get implements storage.Storage.
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.Item, error) {
	options := &storage.Options{}
	for _, opt := range opts {
		opt(options)
	}
	redisKey := s.buildKey(options.Namespace, key)

	result := s.client.Get(ctx, redisKey)
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("getting key %s: %w", redisKey, result.Err())
	}

	var stored storedItem
	if err := json.Unmarshal([]byte(result.Val()), &stored); err != nil {
		return nil, fmt.Errorf("unmarshaling stored value: %w", err)
	}
	item := &storage.Item{
		Data:      stored.Data,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}

	// Redis expiry normally reaps these, but a clock-skewed replica may read
	// an item past its recorded expiry.
	if item.IsExpired() {
		s.client.Del(ctx, redisKey)
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
	redisKey := s.buildKey(options.Namespace, key)

	now := time.Now()
	stored := storedItem{
		Data:      data,
		CreatedAt: now,
	}
	var redisTTL time.Duration
	if options.TTL != nil {
		expiresAt := now.Add(*options.TTL)
		stored.ExpiresAt = &expiresAt
		redisTTL = *options.TTL
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshaling stored value: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, payload, redisTTL).Err(); err != nil {
		return fmt.Errorf("setting key %s: %w", redisKey, err)
	}
	return nil
}

// Delete implements storage.Storage.
func (s *Storage) Delete(ctx context.Context, opts ...storage.Option) error {
	options := &storage.Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Key != nil {
		redisKey := s.buildKey(options.Namespace, *options.Key)
		if err := s.client.Del(ctx, redisKey).Err(); err != nil {
			return fmt.Errorf("deleting key %s: %w", redisKey, err)
		}
		return nil
	}

	pattern := s.buildKey(options.Namespace, "*")
	keys, err := s.scanKeys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scanning keys for %s: %w", pattern, err)
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("deleting namespace keys: %w", err)
		}
	}
	return nil
}

// Close implements storage.Storage.
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) buildKey(namespace storage.Namespace, key string) string {
	switch ns := namespace.(type) {
	case storage.SessionNamespace:
		return s.keyPrefix + "session:" + ns.Session + ":" + key
	case storage.UserNamespace:
		return s.keyPrefix + "user:" + ns.UserID + ":" + key
	default:
		return s.keyPrefix + "global:" + key
	}
}

// scanKeys walks SCAN cursors until the full keyspace matching pattern has
// been visited.
func (s *Storage) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		result := s.client.Scan(ctx, cursor, pattern, 100)
		if result.Err() != nil {
			return nil, result.Err()
		}
		batch, next := result.Val()
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

var _ storage.Storage = (*Storage)(nil)

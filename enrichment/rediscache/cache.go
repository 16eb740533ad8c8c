// Package rediscache provides a Redis read-through cache in front of an
// auth.EnrichmentStore.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	auth "github.com/goliatone/go-condo-auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix   = "condo:enrichment:"
	DefaultTTL         = 5 * time.Minute
	DefaultNegativeTTL = 30 * time.Second
)

// Client is the subset of *redis.Client the cache needs
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

// Config contains configuration options for the cache
type Config struct {
	// Client is the Redis client instance
	Client Client

	// Next is the store consulted on a miss
	Next auth.EnrichmentStore

	// KeyPrefix is the prefix for all Redis keys
	// Default: "condo:enrichment:"
	KeyPrefix string

	// TTL applies to found records. Default: 5m
	TTL time.Duration

	// NegativeTTL applies to "no record" answers. Default: 30s
	NegativeTTL time.Duration

	Logger auth.Logger
}

// Cache implements auth.EnrichmentStore. Redis failures never fail a
// lookup: the cache is skipped and the backing store answers.
type Cache struct {
	client      Client
	next        auth.EnrichmentStore
	keyPrefix   string
	ttl         time.Duration
	negativeTTL time.Duration
	logger      auth.Logger
}

var _ auth.EnrichmentStore = (*Cache)(nil)

// entry is what gets stored in Redis
type entry struct {
	Found    bool                   `json:"found"`
	Record   *auth.EnrichmentRecord `json:"record,omitempty"`
	CachedAt time.Time              `json:"cached_at"`
}

// New creates a cache
func New(config Config) (*Cache, error) {
	if config.Client == nil {
		return nil, goerrors.New("redis client is required", goerrors.CategoryBadInput)
	}
	if config.Next == nil {
		return nil, goerrors.New("backing enrichment store is required", goerrors.CategoryBadInput)
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.NegativeTTL <= 0 {
		config.NegativeTTL = DefaultNegativeTTL
	}
	if config.Logger == nil {
		config.Logger = nopLogger{}
	}

	return &Cache{
		client:      config.Client,
		next:        config.Next,
		keyPrefix:   config.KeyPrefix,
		ttl:         config.TTL,
		negativeTTL: config.NegativeTTL,
		logger:      config.Logger,
	}, nil
}

// FindBySubjectID serves from Redis when possible and fills it on a miss
func (c *Cache) FindBySubjectID(ctx context.Context, subjectID string) (*auth.EnrichmentRecord, error) {
	key := c.buildKey(subjectID)

	if cached, ok := c.lookup(ctx, key); ok {
		if !cached.Found {
			return nil, nil
		}
		return cached.Record, nil
	}

	record, err := c.next.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, record)
	return record, nil
}

// Invalidate drops the cached answer for subjectID
func (c *Cache) Invalidate(ctx context.Context, subjectID string) error {
	if err := c.client.Del(ctx, c.buildKey(subjectID)).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to invalidate enrichment cache").
			WithMetadata(map[string]any{"subject_id": subjectID})
	}
	return nil
}

func (c *Cache) lookup(ctx context.Context, key string) (entry, bool) {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("enrichment cache get %s failed: %v", key, err)
		}
		return entry{}, false
	}

	var cached entry
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		c.logger.Warn("enrichment cache entry %s is corrupt: %v", key, err)
		return entry{}, false
	}
	return cached, true
}

func (c *Cache) store(ctx context.Context, key string, record *auth.EnrichmentRecord) {
	cached := entry{Found: record != nil, Record: record, CachedAt: time.Now()}
	ttl := c.ttl
	if record == nil {
		ttl = c.negativeTTL
	}

	data, err := json.Marshal(cached)
	if err != nil {
		c.logger.Warn("failed to encode enrichment cache entry %s: %v", key, err)
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("enrichment cache set %s failed: %v", key, err)
	}
}

func (c *Cache) buildKey(subjectID string) string {
	return c.keyPrefix + subjectID
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

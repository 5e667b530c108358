package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"goflare.io/ember"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

// Cache keeps schema lookups off the database on the write path of every
// extensible entity. Published versions never change, so they live in the
// multi-level cache. The active pointer stays in redis only and expires
// after ttl.
type Cache interface {
	GetActive(ctx context.Context, entityType enum.EntityType) (*models.SchemaDefinition, bool, error)
	// SetActive never replaces a cached active schema with an older version,
	// so a reader that loaded the previous version before a publish committed
	// cannot overwrite the newly published one.
	SetActive(ctx context.Context, schema *models.SchemaDefinition) error
	GetVersion(ctx context.Context, entityType enum.EntityType, version int) (*models.SchemaDefinition, bool, error)
	SetVersion(ctx context.Context, schema *models.SchemaDefinition) error
}

var _ Cache = (*RedisCache)(nil)

type RedisCache struct {
	client   *redis.Client
	versions *ember.MultiCache
	ttl      time.Duration
}

func NewRedisCache(client *redis.Client, versions *ember.MultiCache, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, versions: versions, ttl: ttl}
}

func activeKey(entityType enum.EntityType) string {
	return fmt.Sprintf("schema:active:%s", entityType)
}

func versionKey(entityType enum.EntityType, version int) string {
	return fmt.Sprintf("schema:%s:v%d", entityType, version)
}

// setActive stores the active schema as a hash of version and data. It
// returns 0 when a newer version is already cached.
var setActive = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version'))
if current and current > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

func (c *RedisCache) GetActive(ctx context.Context, entityType enum.EntityType) (*models.SchemaDefinition, bool, error) {
	key := activeKey(entityType)
	raw, err := c.client.HGet(ctx, key, "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s from cache: %w", key, err)
	}

	var schema models.SchemaDefinition
	if err = json.Unmarshal(raw, &schema); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return &schema, true, nil
}

func (c *RedisCache) SetActive(ctx context.Context, schema *models.SchemaDefinition) error {
	key := activeKey(schema.EntityType)
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}
	if err = setActive.Run(ctx, c.client, []string{key}, schema.Version, raw, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) GetVersion(ctx context.Context, entityType enum.EntityType, version int) (*models.SchemaDefinition, bool, error) {
	var schema models.SchemaDefinition
	found, err := c.versions.Get(ctx, versionKey(entityType, version), &schema)
	if err != nil || !found {
		return nil, false, err
	}
	return &schema, true, nil
}

// SetVersion only caches published versions; drafts are still mutable.
func (c *RedisCache) SetVersion(ctx context.Context, schema *models.SchemaDefinition) error {
	if schema.IsDraft() {
		return nil
	}
	return c.versions.Set(ctx, versionKey(schema.EntityType, schema.Version), schema)
}

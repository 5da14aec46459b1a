package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKeyPrefix = "reports:version"
	bumpChannel      = "reports.bump"
)

// Cache wraps Redis based caching with per-account version keys. Bumping an
// account's version orphans every key built with the previous version.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(accountID int64) string {
	return fmt.Sprintf("%s:%d", versionKeyPrefix, accountID)
}

// Version returns the account's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, accountID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(accountID)).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so two first readers agree on the initial version.
		if err := c.client.SetNX(ctx, versionKey(accountID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(accountID)).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the account's current version.
func (c *Cache) BuildKey(ctx context.Context, accountID int64, parts ...string) (string, error) {
	base := "reports:" + strconv.FormatInt(accountID, 10) + ":" + strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, accountID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("reports: cache loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates an account's cached reports and announces the new version.
func (c *Cache) Bump(ctx context.Context, accountID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(accountID)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, fmt.Sprintf("%d:%d", accountID, ver)).Err()
}

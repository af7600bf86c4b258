package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "ledger:reports"
	bumpChannel    = "ledger.bump"
)

// Cache wraps Redis based caching with per-workspace versioning.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(workspaceID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:version", cacheKeyPrefix, workspaceID)
}

// Version returns the current workspace cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(workspaceID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current workspace version.
func (c *Cache) BuildKey(ctx context.Context, workspaceID uuid.UUID, parts ...string) (string, error) {
	joined := strings.Join(append([]string{cacheKeyPrefix, workspaceID.String()}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate drops every cached report of a workspace by bumping its version
// and publishing the new version.
func (c *Cache) Invalidate(ctx context.Context, workspaceID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(workspaceID)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, fmt.Sprintf("%s:%d", workspaceID, ver)).Err()
}

// ListenForInvalidation applies version bumps published by other instances
// sharing the channel until ctx is done.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = bumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ws, ver, err := parseBump(msg.Payload)
				if err != nil {
					continue
				}
				key := versionKey(ws)
				current, err := c.client.Get(ctx, key).Int64()
				if err != nil && !errors.Is(err, redis.Nil) {
					continue
				}
				if ver > current {
					_ = c.client.Set(ctx, key, ver, 0).Err()
				}
			}
		}
	}()
	return nil
}

func parseBump(payload string) (uuid.UUID, int64, error) {
	idx := strings.LastIndex(payload, ":")
	if idx <= 0 {
		return uuid.Nil, 0, fmt.Errorf("cache: malformed bump %q", payload)
	}
	ws, err := uuid.Parse(payload[:idx])
	if err != nil {
		return uuid.Nil, 0, err
	}
	var ver int64
	if _, err := fmt.Sscanf(payload[idx+1:], "%d", &ver); err != nil {
		return uuid.Nil, 0, err
	}
	return ws, ver, nil
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

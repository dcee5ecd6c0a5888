package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultProfileTTL = 10 * time.Minute
	profileKeyPrefix  = "tripplanner:profile:"
)

// ProfileCache stores public profile lookups. A miss is reported with
// ok == false and a nil error.
type ProfileCache interface {
	GetProfile(ctx context.Context, id string) (profile types.Profile, ok bool, err error)
	SetProfile(ctx context.Context, profile types.Profile) error
	Close() error
}

type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(addr string, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}

	return &RedisProfileCache{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
		ttl: ttl,
	}
}

func profileKey(id string) string {
	return profileKeyPrefix + id
}

func (c *RedisProfileCache) GetProfile(ctx context.Context, id string) (types.Profile, bool, error) {
	raw, err := c.client.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.Profile{}, false, nil
		}
		return types.Profile{}, false, fmt.Errorf("redis get: %w", err)
	}

	var p types.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.Profile{}, false, fmt.Errorf("decode cached profile: %w", err)
	}

	return p, true, nil
}

func (c *RedisProfileCache) SetProfile(ctx context.Context, p types.Profile) error {
	// only the public fields are cached
	p.Email = ""
	p.Password = ""

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := c.client.Set(ctx, profileKey(p.Id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

func (c *RedisProfileCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}

// NoopProfileCache never hits. It is used when no redis address is set.
type NoopProfileCache struct{}

func (NoopProfileCache) GetProfile(context.Context, string) (types.Profile, bool, error) {
	return types.Profile{}, false, nil
}

func (NoopProfileCache) SetProfile(context.Context, types.Profile) error { return nil }

func (NoopProfileCache) Close() error { return nil }

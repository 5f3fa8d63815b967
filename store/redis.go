package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store on a single Redis instance.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis instance at addr and verifies the
// connection with a ping.
func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests that run
// against an in-process server.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) BlockingPop(ctx context.Context, queue string) (string, error) {
	// BLPOP with a zero timeout blocks until an element arrives. The
	// reply is [key, value].
	res, err := r.client.BLPop(ctx, 0, queue).Result()
	if err != nil {
		return "", fmt.Errorf("blpop %s: %w", queue, err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("blpop %s: unexpected reply of length %d", queue, len(res))
	}
	return res[1], nil
}

func (r *Redis) Append(ctx context.Context, queue, username string) error {
	if err := r.client.RPush(ctx, queue, username).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", queue, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, queue, username string) error {
	// Count 0 removes all occurrences; a member that is not in the list
	// is a silent no-op.
	if err := r.client.LRem(ctx, queue, 0, username).Err(); err != nil {
		return fmt.Errorf("lrem %s: %w", queue, err)
	}
	return nil
}

func (r *Redis) HashSet(ctx context.Context, key string, fields map[string]any) error {
	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (r *Redis) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return fields, nil
}

func (r *Redis) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

func (r *Redis) ConditionalDelete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("del %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) GeoAdd(ctx context.Context, key, member string, longitude, latitude float64) error {
	loc := &redis.GeoLocation{
		Name:      member,
		Longitude: longitude,
		Latitude:  latitude,
	}
	if err := r.client.GeoAdd(ctx, key, loc).Err(); err != nil {
		return fmt.Errorf("geoadd %s: %w", key, err)
	}
	return nil
}

func (r *Redis) GeoRadius(ctx context.Context, key string, longitude, latitude, radiusKm float64) ([]GeoEntry, error) {
	locs, err := r.client.GeoRadius(ctx, key, longitude, latitude, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius %s: %w", key, err)
	}
	entries := make([]GeoEntry, len(locs))
	for i, loc := range locs {
		entries[i] = GeoEntry{
			Username:  loc.Name,
			Longitude: loc.Longitude,
			Latitude:  loc.Latitude,
		}
	}
	return entries, nil
}

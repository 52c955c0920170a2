package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lmp-gridmap/internal/geo"
	"lmp-gridmap/internal/observability"
)

// Redis stores grids as JSON under a key prefix.
type Redis struct {
	c      redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis connects to a single Redis server.
func NewRedis(addr, pass string, db int, ttl time.Duration) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ttl)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(c redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{c: c, prefix: "gridmap:", ttl: ttl}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]geo.Cell, []geo.Skip, bool, error) {
	v, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return nil, nil, false, nil
	}
	if err != nil {
		observability.ObserveCache("redis", "error")
		return nil, nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var e entry
	if err := json.Unmarshal(v, &e); err != nil {
		observability.ObserveCache("redis", "error")
		return nil, nil, false, fmt.Errorf("decode cached grid %s: %w", key, err)
	}
	if err := e.validate(); err != nil {
		observability.ObserveCache("redis", "error")
		return nil, nil, false, fmt.Errorf("cached grid %s: %w", key, err)
	}
	observability.ObserveCache("redis", "hit")
	if e.Cells == nil {
		e.Cells = []geo.Cell{}
	}
	return e.Cells, e.Skipped, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, cells []geo.Cell, skipped []geo.Skip) error {
	b, err := json.Marshal(entry{Cells: cells, Skipped: skipped})
	if err != nil {
		return fmt.Errorf("encode grid %s: %w", key, err)
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, r.prefix+key, b, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, r.prefix+key).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.c.Close()
}

package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultCounterPrefix = "availability:lot:"

// RedisIndex mirrors each lot's available-slot counter in Redis so
// availability reads never touch the entity store. Updates are atomic
// INCRBY deltas, not recount-and-overwrite, so concurrent writers cannot
// lose each other's updates.
type RedisIndex struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

// NewRedisIndex constructs the mirror. A zero ttl keeps counters forever.
func NewRedisIndex(client redis.Cmdable, prefix string, ttl time.Duration) *RedisIndex {
	if prefix == "" {
		prefix = defaultCounterPrefix
	}
	return &RedisIndex{client: client, keyPrefix: prefix, ttl: ttl}
}

// Apply shifts the lot counter by delta and returns the new value.
func (r *RedisIndex) Apply(ctx context.Context, lotID uuid.UUID, delta int) (int64, error) {
	key := r.keyPrefix + lotID.String()
	value, err := r.client.IncrBy(ctx, key, int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby: %w", err)
	}
	if r.ttl > 0 {
		_ = r.client.Expire(ctx, key, r.ttl).Err()
	}
	return value, nil
}

// Rebuild overwrites the mirror with an authoritative count from the
// store, for provisioning and repair.
func (r *RedisIndex) Rebuild(ctx context.Context, lotID uuid.UUID, count int) error {
	key := r.keyPrefix + lotID.String()
	if err := r.client.Set(ctx, key, count, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get reads the mirrored counter. Missing keys read as zero with ok=false
// so callers can fall back to the store.
func (r *RedisIndex) Get(ctx context.Context, lotID uuid.UUID) (int64, bool, error) {
	key := r.keyPrefix + lotID.String()
	value, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Drop removes the lot's counter after the lot is deleted.
func (r *RedisIndex) Drop(ctx context.Context, lotID uuid.UUID) error {
	if err := r.client.Del(ctx, r.keyPrefix+lotID.String()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

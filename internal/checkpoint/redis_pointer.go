package checkpoint

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

const pointerPrefix = "entropyguard:checkpoint:latest:"

// RedisPointerCache remembers, per (input_fingerprint, config_fingerprint),
// the furthest stage successfully checkpointed, so a resuming run can skip
// probing FSStore/PostgresStore for stages it already knows are absent.
// It never holds the snapshot itself; on a cache miss the caller still
// falls back to the real Checkpointer.
type RedisPointerCache struct {
	client *redis.Client
}

// NewRedisPointerCache wraps an existing Redis client.
func NewRedisPointerCache(client *redis.Client) *RedisPointerCache {
	return &RedisPointerCache{client: client}
}

func pointerKey(inputFingerprint string, configFingerprint string) string {
	return pointerPrefix + inputFingerprint + ":" + configFingerprint
}

// Record marks stage as reached for the given input/config pair.
func (c *RedisPointerCache) Record(ctx context.Context, inputFingerprint string, configFingerprint string, stage driven.CheckpointStage) error {
	if err := c.client.Set(ctx, pointerKey(inputFingerprint, configFingerprint), string(stage), 0).Err(); err != nil {
		return fmt.Errorf("checkpoint pointer: set: %w", err)
	}
	return nil
}

// Latest returns the most recently recorded stage and true, or ("", false)
// if nothing has been recorded for this input/config pair.
func (c *RedisPointerCache) Latest(ctx context.Context, inputFingerprint string, configFingerprint string) (driven.CheckpointStage, bool, error) {
	val, err := c.client.Get(ctx, pointerKey(inputFingerprint, configFingerprint)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checkpoint pointer: get: %w", err)
	}
	return driven.CheckpointStage(val), true, nil
}

// Ping reports whether the backing Redis instance is reachable.
func (c *RedisPointerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ driven.Checkpointer = (*PointerTrackingStore)(nil)

// PointerTrackingStore decorates a real Checkpointer so every successful
// Save also advances the Redis pointer. The pointer stays best-effort
// like the snapshots themselves: a cache write failure never turns a
// good checkpoint into an error.
type PointerTrackingStore struct {
	inner driven.Checkpointer
	cache *RedisPointerCache
}

// TrackPointer wraps inner with pointer recording. A nil cache returns
// inner unchanged.
func TrackPointer(inner driven.Checkpointer, cache *RedisPointerCache) driven.Checkpointer {
	if cache == nil {
		return inner
	}
	return &PointerTrackingStore{inner: inner, cache: cache}
}

func (s *PointerTrackingStore) Save(ctx context.Context, key driven.CheckpointKey, records []domain.Record) error {
	if err := s.inner.Save(ctx, key, records); err != nil {
		return err
	}
	// The orchestrator saves stages in pipeline order, so overwriting
	// always moves the pointer forward within a run.
	_ = s.cache.Record(ctx, key.InputFingerprint, string(key.ConfigFingerprint), key.Stage)
	return nil
}

func (s *PointerTrackingStore) Load(ctx context.Context, key driven.CheckpointKey) ([]domain.Record, error) {
	return s.inner.Load(ctx, key)
}

// Package guard also carries the optional distributed run-lock: two CI
// runners picking up the same input must not process it concurrently, or
// they would race on the checkpoint directory and double-spend embedding
// calls. The lock value is the run ID, so an operator inspecting Redis
// (or a "lock held" error) sees exactly which run owns the input. The
// lease is short and renewed from the orchestrator's per-batch progress
// callback; a crashed runner therefore frees the input after one missed
// heartbeat interval instead of a multi-hour TTL.
package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*RunLock)(nil)

const lockKeyspace = "entropyguard:run-lock:"

// DefaultLockTTL is the lease granted on acquire and on every heartbeat
// renewal. It only needs to outlive the gap between two batches.
const DefaultLockTTL = 5 * time.Minute

// guardedMutate performs release ("del") or renew ("pexpire") only when
// the stored value still matches this holder's token, in one atomic step.
// Anything else would let a runner whose lease expired stomp on the
// runner that legitimately took over.
var guardedMutate = redis.NewScript(`
local holder = redis.call("GET", KEYS[1])
if holder ~= ARGV[1] then
  return 0
end
if ARGV[2] == "del" then
  return redis.call("DEL", KEYS[1])
end
return redis.call("PEXPIRE", KEYS[1], ARGV[3])
`)

// RunLock is the Redis-backed run lock. The token identifies the holding
// run: the run ID plus a random suffix, so even two processes that were
// handed the same run ID cannot release each other's lease.
type RunLock struct {
	client *redis.Client
	token  string
}

// NewRunLock binds a lock to runID. runID may be empty (the token is
// still unique), but passing the real run ID makes lock state legible.
func NewRunLock(client *redis.Client, runID string) *RunLock {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	if runID == "" {
		runID = "anonymous"
	}
	return &RunLock{
		client: client,
		token:  runID + "/" + hex.EncodeToString(suffix),
	}
}

// Acquire takes the named lease if nobody holds it. It never blocks or
// retries; the caller decides whether a held lock is fatal.
func (l *RunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	ok, err := l.client.SetNX(ctx, lockKeyspace+name, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock %q: %w", name, err)
	}
	return ok, nil
}

// Release frees the lease if this run still holds it. Releasing a lock
// that expired or was taken over is a silent no-op.
func (l *RunLock) Release(ctx context.Context, name string) error {
	_, err := guardedMutate.Run(ctx, l.client, []string{lockKeyspace + name}, l.token, "del").Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release run lock %q: %w", name, err)
	}
	return nil
}

// Extend renews the lease. The orchestrator's progress callback calls
// this once per batch, so the TTL only needs to cover the slowest batch.
func (l *RunLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	res, err := guardedMutate.Run(ctx, l.client, []string{lockKeyspace + name}, l.token, "pexpire", ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("renew run lock %q: %w", name, err)
	}
	if n, _ := res.(int64); n == 0 {
		return fmt.Errorf("run lock %q: lease lost (expired or taken over)", name)
	}
	return nil
}

// Ping reports whether the backing Redis instance is reachable.
func (l *RunLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Holder returns who currently holds the named lock ("" if nobody), for
// the "input already being processed" error message.
func (l *RunLock) Holder(ctx context.Context, name string) (string, error) {
	val, err := l.client.Get(ctx, lockKeyspace+name).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("inspect run lock %q: %w", name, err)
	}
	return val, nil
}

// Token returns this run's lock token, for logging.
func (l *RunLock) Token() string { return l.token }

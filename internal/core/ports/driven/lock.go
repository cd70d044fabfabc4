package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates a single run across concurrent processes that
// might otherwise race on the same checkpoint directory or output path
// (e.g. two CI runners picking up the same job). Acquire/Release follow the
// same TTL-with-owner shape regardless of backend (Redis SETNX, Postgres
// advisory lock); Extend is a no-op for backends without TTL semantics.
type DistributedLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
	Extend(ctx context.Context, name string, ttl time.Duration) error
	Ping(ctx context.Context) error
}

package guard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRunLockTokenCarriesRunID(t *testing.T) {
	client, _ := setupTestRedis(t)

	l := NewRunLock(client, "run-abc123")
	if !strings.HasPrefix(l.Token(), "run-abc123/") {
		t.Errorf("token = %q, want run-abc123/ prefix", l.Token())
	}

	// Same run ID, different process: tokens must still differ.
	other := NewRunLock(client, "run-abc123")
	if l.Token() == other.Token() {
		t.Error("two locks for the same run ID share a token")
	}
}

func TestRunLockAcquireExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	a := NewRunLock(client, "run-a")
	b := NewRunLock(client, "run-b")

	ok, err := a.Acquire(ctx, "corpus.ndjson", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = b.Acquire(ctx, "corpus.ndjson", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second acquire succeeded while lock held")
	}

	holder, err := b.Holder(ctx, "corpus.ndjson")
	if err != nil {
		t.Fatal(err)
	}
	if holder != a.Token() {
		t.Errorf("holder = %q, want %q", holder, a.Token())
	}
}

func TestRunLockReleaseOnlyByHolder(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	a := NewRunLock(client, "run-a")
	b := NewRunLock(client, "run-b")

	if ok, _ := a.Acquire(ctx, "input", time.Minute); !ok {
		t.Fatal("acquire failed")
	}

	// A non-holder release is a no-op, not a theft.
	if err := b.Release(ctx, "input"); err != nil {
		t.Fatalf("non-holder release: %v", err)
	}
	if ok, _ := b.Acquire(ctx, "input", time.Minute); ok {
		t.Fatal("lock was released by a non-holder")
	}

	if err := a.Release(ctx, "input"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := b.Acquire(ctx, "input", time.Minute); !ok {
		t.Fatal("lock not acquirable after holder release")
	}
}

func TestRunLockExtendRenewsLease(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	l := NewRunLock(client, "run-a")
	if ok, _ := l.Acquire(ctx, "input", time.Minute); !ok {
		t.Fatal("acquire failed")
	}
	if err := l.Extend(ctx, "input", 2*time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}

	// A lease that expired cannot be renewed; the heartbeat must fail
	// loudly so the run knows another worker may have taken over.
	mr.FastForward(3 * time.Minute)
	if err := l.Extend(ctx, "input", time.Minute); err == nil {
		t.Fatal("extend succeeded on an expired lease")
	}
}

func TestRunLockExtendRejectsNonHolder(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	a := NewRunLock(client, "run-a")
	b := NewRunLock(client, "run-b")
	if ok, _ := a.Acquire(ctx, "input", time.Minute); !ok {
		t.Fatal("acquire failed")
	}
	if err := b.Extend(ctx, "input", time.Minute); err == nil {
		t.Fatal("non-holder extended the lease")
	}
}

func TestRunLockDistinctNamesDoNotContend(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	a := NewRunLock(client, "run-a")
	b := NewRunLock(client, "run-b")
	if ok, _ := a.Acquire(ctx, "input-one", time.Minute); !ok {
		t.Fatal("acquire one failed")
	}
	if ok, _ := b.Acquire(ctx, "input-two", time.Minute); !ok {
		t.Fatal("acquire two failed")
	}
}

func TestRunLockHolderEmptyWhenFree(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRunLock(client, "run-a")
	holder, err := l.Holder(context.Background(), "never-locked")
	if err != nil {
		t.Fatal(err)
	}
	if holder != "" {
		t.Errorf("holder = %q, want empty", holder)
	}
}

func TestRunLockZeroTTLFallsBackToDefault(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	l := NewRunLock(client, "run-a")
	if ok, err := l.Acquire(ctx, "input", 0); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	// The default lease outlives a short fast-forward.
	mr.FastForward(time.Minute)
	if err := l.Extend(ctx, "input", 0); err != nil {
		t.Fatalf("extend within default lease: %v", err)
	}
}

func TestRunLockPing(t *testing.T) {
	client, _ := setupTestRedis(t)
	if err := NewRunLock(client, "run-a").Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

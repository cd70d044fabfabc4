// Package guard implements pre-flight and in-flight resource checks.
// Every guard emits a structured *domain.ResourceError, never a crash.
package guard

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// DiskGuard checks that the output volume has enough free space before a
// run starts: >= 1.2x the estimated output footprint.
type DiskGuard struct {
	// StatFS is overridable in tests; defaults to syscall.Statfs.
	StatFS func(path string, buf *syscall.Statfs_t) error
}

// NewDiskGuard builds a DiskGuard using the real filesystem.
func NewDiskGuard() *DiskGuard {
	return &DiskGuard{StatFS: syscall.Statfs}
}

// CheckFreeSpace verifies the volume containing path has at least
// 1.2*estimatedOutputBytes free.
func (g *DiskGuard) CheckFreeSpace(path string, estimatedOutputBytes int64) error {
	if estimatedOutputBytes <= 0 {
		return nil
	}
	var stat syscall.Statfs_t
	if err := g.StatFS(path, &stat); err != nil {
		return domain.NewResourceError("guard.DiskGuard", fmt.Errorf("statfs %s: %w", path, err))
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	required := int64(float64(estimatedOutputBytes) * 1.2)
	if free < required {
		return domain.NewResourceError("guard.DiskGuard",
			fmt.Errorf("insufficient free disk on %s: have %d bytes, need >= %d", path, free, required))
	}
	return nil
}

// MemoryGuard checks that the configured memory ceiling, if any, is not
// already exceeded by the process's current resident set.
type MemoryGuard struct {
	// ReadRSSBytes is overridable in tests.
	ReadRSSBytes func() (int64, error)
}

// NewMemoryGuard builds a MemoryGuard reading /proc/self/statm on Linux.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{ReadRSSBytes: readRSSBytes}
}

// CheckHeadroom verifies current RSS is below ceilingBytes. ceilingBytes
// <= 0 means no ceiling is configured.
func (g *MemoryGuard) CheckHeadroom(ceilingBytes int64) error {
	if ceilingBytes <= 0 {
		return nil
	}
	rss, err := g.ReadRSSBytes()
	if err != nil {
		return domain.NewResourceError("guard.MemoryGuard", fmt.Errorf("read RSS: %w", err))
	}
	if rss >= ceilingBytes {
		return domain.NewResourceError("guard.MemoryGuard",
			fmt.Errorf("resident memory %d bytes already at or above ceiling %d", rss, ceilingBytes))
	}
	return nil
}

// TimeoutGuard wraps a run with a wall-clock budget. On expiry it cancels
// the context it derived so the driver can abort the current batch
// boundary with a resource error rather than being killed mid-batch.
type TimeoutGuard struct {
	Budget time.Duration
}

// NewTimeoutGuard builds a TimeoutGuard. budget <= 0 disables the timeout.
func NewTimeoutGuard(budget time.Duration) *TimeoutGuard {
	return &TimeoutGuard{Budget: budget}
}

// WithDeadline returns a derived context that is canceled once Budget
// elapses, and a cancel func the caller must invoke to release resources.
// If Budget <= 0, it returns ctx unchanged with a no-op cancel.
func (g *TimeoutGuard) WithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.Budget <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.Budget)
}

// CheckExpired translates a context's Err() into a *domain.ResourceError
// when it was canceled by TimeoutGuard's deadline, so the orchestrator can
// distinguish "resource budget exceeded" from an ordinary caller
// cancellation at the exit-code layer.
func CheckExpired(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.NewResourceError("guard.TimeoutGuard", fmt.Errorf("wall-clock budget exceeded"))
	}
	return ctx.Err()
}

// Package runtime holds the run-scoped registry of optional backends
// (embedding service, checkpoint store, distributed lock, telemetry
// reporter) behind a single thread-safe handle.
package runtime

import (
	"context"
	"sync"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// Services holds the optional driven-side backends selected for one run.
// Every field may be nil; RuntimeContext's capability flags are the
// source of truth for whether a nil means "not configured" or
// "configured but currently unhealthy". Safe for concurrent use, though
// in practice the orchestrator wires these once at startup and only
// reads them afterward.
type Services struct {
	mu sync.RWMutex

	ctx *domain.RuntimeContext

	embeddingService driven.EmbeddingService
	checkpointer     driven.Checkpointer
	lock             driven.DistributedLock
	telemetry        driven.Telemetry
}

// NewServices creates an empty registry bound to ctx.
func NewServices(ctx *domain.RuntimeContext) *Services {
	return &Services{ctx: ctx}
}

// RuntimeContext returns the capability-flag context backing this registry.
func (s *Services) RuntimeContext() *domain.RuntimeContext {
	return s.ctx
}

// EmbeddingService returns the active embedding backend, or nil.
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// Checkpointer returns the active checkpoint backend, or nil if C11 is
// disabled for this run.
func (s *Services) Checkpointer() driven.Checkpointer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpointer
}

// Lock returns the active distributed run-lock, or nil if runs are not
// coordinated across processes.
func (s *Services) Lock() driven.DistributedLock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lock
}

// Telemetry returns the active end-of-run reporter, or nil.
func (s *Services) Telemetry() driven.Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry
}

// SetCheckpointer installs backend, closing none (Checkpointer has no
// Close; backends that own a connection, such as PostgresStore, are
// closed by the caller that constructed them).
func (s *Services) SetCheckpointer(backend driven.Checkpointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpointer = backend
}

// SetLock installs the distributed lock backend and records its
// availability on the RuntimeContext.
func (s *Services) SetLock(lock driven.DistributedLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock = lock
	s.ctx.SetDistributedLock(lock != nil)
}

// SetTelemetry installs the telemetry reporter and records availability.
func (s *Services) SetTelemetry(t driven.Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = t
	s.ctx.SetTelemetryConfigured(t != nil)
}

// ValidateAndSetEmbedding health-checks svc before installing it. If the
// check fails, svc is closed and the previous embedding service stays
// installed; otherwise the previous service (if any) is closed and
// replaced. A nil svc clears the slot.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc != nil {
		if err := svc.HealthCheck(ctx); err != nil {
			_ = svc.Close()
			return err
		}
	}
	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
	return nil
}

// Close shuts down every owned service that exposes one. Best-effort:
// the first error is returned but every Close is still attempted.
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.embeddingService != nil {
		if err := s.embeddingService.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.embeddingService = nil
	}
	return firstErr
}

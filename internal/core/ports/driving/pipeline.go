package driving

import (
	"context"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// Pipeline is the single entry point an external driver (CLI, or a future
// workflow-orchestrator adapter) calls to run EntropyGuard end to end. It
// carries no global state: every invocation is independent given its Config.
type Pipeline interface {
	Run(ctx context.Context, cfg domain.Config) (*domain.Stats, error)
}

package driven

import (
	"context"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// CheckpointStage names the named points the orchestrator may snapshot at.
type CheckpointStage string

const (
	StageAfterExactDedup    CheckpointStage = "after_exact_dedup"
	StageAfterSemanticDedup CheckpointStage = "after_semantic_dedup"
	StageAfterValidation    CheckpointStage = "after_validation"
)

// CheckpointKey binds a snapshot to the exact input and config that produced
// it. On resume, a mismatch on either fingerprint means "start over".
type CheckpointKey struct {
	InputFingerprint  string
	ConfigFingerprint domain.ConfigFingerprint
	Stage             CheckpointStage
}

// Checkpointer persists and retrieves best-effort snapshots of pipeline
// state. A failure to persist must never fail the run.
type Checkpointer interface {
	// Save stores the cleaned-record shard and associated metadata. Errors
	// are logged by the caller, not propagated as a run failure.
	Save(ctx context.Context, key CheckpointKey, records []domain.Record) error

	// Load returns the most recent snapshot whose key matches exactly, or
	// domain.ErrNotFound if none exists.
	Load(ctx context.Context, key CheckpointKey) ([]domain.Record, error)
}

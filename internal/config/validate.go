package config

import (
	"context"
	"fmt"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// Validate enforces the startup invariants, returning a
// *domain.ValidationError on the first violation.
//
// source must already be open (the caller owns its lifecycle): schema
// probing cannot reopen "-"/stdin, so validation and the pipeline run share
// one RowSource, with PeekSchema's sample pushed back for the orchestrator's
// subsequent reads.
func Validate(ctx context.Context, cfg domain.Config, source driven.RowSource) error {
	if cfg.DedupThreshold < 0 || cfg.DedupThreshold > 1 {
		return domain.NewValidationError("config.Validate", fmt.Errorf("dedup_threshold %.4f out of range [0,1]", cfg.DedupThreshold))
	}
	if cfg.MinLength < 0 {
		return domain.NewValidationError("config.Validate", fmt.Errorf("min_length %d must be >= 0", cfg.MinLength))
	}
	if cfg.BatchSize < 1 {
		return domain.NewValidationError("config.Validate", fmt.Errorf("batch_size %d must be >= 1", cfg.BatchSize))
	}
	if cfg.ChunkSize > 0 && cfg.ChunkOverlap >= cfg.ChunkSize {
		return domain.NewValidationError("config.Validate", fmt.Errorf("chunk_overlap %d must be < chunk_size %d", cfg.ChunkOverlap, cfg.ChunkSize))
	}
	switch cfg.MissingValuePolicy {
	case "drop", "fill":
	default:
		return domain.NewValidationError("config.Validate", fmt.Errorf("missing_value_policy %q must be drop or fill", cfg.MissingValuePolicy))
	}

	cols, err := source.PeekSchema(ctx, 100)
	if err != nil {
		return domain.NewValidationError("config.Validate", fmt.Errorf("schema probe: %w", err))
	}
	names := make(map[string]bool, len(cols))
	for _, c := range cols {
		names[c.Name] = true
	}
	for _, req := range cfg.RequiredColumns {
		if !names[req] {
			return domain.NewValidationError("config.Validate", fmt.Errorf("required column %q missing from schema", req))
		}
	}
	if cfg.TextColumn != "" && !names[cfg.TextColumn] {
		return domain.NewValidationError("config.Validate", fmt.Errorf("text column %q missing from schema", cfg.TextColumn))
	}
	return nil
}

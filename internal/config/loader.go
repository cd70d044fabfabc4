package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// Load reads and decodes a config file through the registered backend
// matching its extension. An empty path returns domain.Default() unchanged.
func Load(registry *Registry, path string) (domain.Config, error) {
	if path == "" {
		return domain.Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Config{}, domain.NewValidationError("config.Load", fmt.Errorf("read %s: %w", path, err))
	}

	ext := strings.ToLower(filepath.Ext(path))
	backend, ok := registry.Get(ext)
	if !ok {
		return domain.Config{}, domain.NewCapabilityError(fmt.Sprintf("config format %q", ext), nil)
	}

	cfg, err := backend.Decode(data)
	if err != nil {
		return domain.Config{}, domain.NewValidationError("config.Load", fmt.Errorf("decode %s: %w", path, err))
	}
	return cfg, nil
}

// Merge overlays non-zero CLI-provided fields onto a file-loaded config.
// CLI flags win when both are non-null.
func Merge(base domain.Config, overrides domain.Config, set map[string]bool) domain.Config {
	merged := base

	apply := func(flag string, fn func()) {
		if set[flag] {
			fn()
		}
	}

	apply("input", func() { merged.Input = overrides.Input })
	apply("output", func() { merged.Output = overrides.Output })
	apply("text-column", func() { merged.TextColumn = overrides.TextColumn })
	apply("required-columns", func() { merged.RequiredColumns = overrides.RequiredColumns })
	apply("min-length", func() { merged.MinLength = overrides.MinLength })
	apply("dedup-threshold", func() { merged.DedupThreshold = overrides.DedupThreshold })
	apply("model-name", func() { merged.ModelName = overrides.ModelName })
	apply("batch-size", func() { merged.BatchSize = overrides.BatchSize })
	apply("chunk-size", func() { merged.ChunkSize = overrides.ChunkSize })
	apply("chunk-overlap", func() { merged.ChunkOverlap = overrides.ChunkOverlap })
	apply("separators", func() { merged.Separators = overrides.Separators })
	apply("audit-log", func() { merged.AuditLogPath = overrides.AuditLogPath })
	apply("metrics-path", func() { merged.MetricsPath = overrides.MetricsPath })
	apply("checkpoint-dir", func() { merged.CheckpointDir = overrides.CheckpointDir })
	apply("telemetry-url", func() { merged.TelemetryURL = overrides.TelemetryURL })
	apply("max-disk-bytes", func() { merged.MaxDiskBytes = overrides.MaxDiskBytes })
	apply("max-mem-bytes", func() { merged.MaxMemBytes = overrides.MaxMemBytes })
	apply("timeout-seconds", func() { merged.TimeoutSecond = overrides.TimeoutSecond })
	apply("missing-value-policy", func() { merged.MissingValuePolicy = overrides.MissingValuePolicy })
	apply("fill-value", func() { merged.FillValue = overrides.FillValue })
	apply("normalize-text", func() { merged.NormalizeText = overrides.NormalizeText })

	merged.JSON = overrides.JSON
	merged.Verbose = overrides.Verbose
	merged.Quiet = overrides.Quiet
	merged.DryRun = overrides.DryRun

	return merged
}

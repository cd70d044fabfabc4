package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(DefaultRegistry(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinLength != 50 || cfg.DedupThreshold != 0.95 || cfg.BatchSize != 10000 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "eg.json", `{"min_length": 80, "dedup_threshold": 0.9}`)
	cfg, err := Load(DefaultRegistry(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinLength != 80 || cfg.DedupThreshold != 0.9 {
		t.Errorf("cfg = %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.BatchSize != 10000 {
		t.Errorf("batch_size = %d", cfg.BatchSize)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "eg.yaml", "min_length: 75\nmodel_name: local:128\n")
	cfg, err := Load(DefaultRegistry(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinLength != 75 || cfg.ModelName != "local:128" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "eg.toml", "min_length = 60\nbatch_size = 500\n")
	cfg, err := Load(DefaultRegistry(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MinLength != 60 || cfg.BatchSize != 500 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad.json", `{"min_lenght": 80}`},
		{"bad.yaml", "min_lenght: 80\n"},
		{"bad.toml", "min_lenght = 80\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.name, tt.content)
			if _, err := Load(DefaultRegistry(), path); err == nil {
				t.Error("unknown key accepted")
			}
		})
	}
}

func TestLoadUnknownExtensionIsCapabilityError(t *testing.T) {
	path := writeFile(t, "eg.ini", "min_length=80")
	_, err := Load(DefaultRegistry(), path)
	if err == nil || !strings.Contains(err.Error(), "capability") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadMissingFileIsValidationError(t *testing.T) {
	_, err := Load(DefaultRegistry(), "/nonexistent/eg.json")
	if err == nil {
		t.Fatal("missing file accepted")
	}
	if domain.ExitCode(err) != 2 {
		t.Errorf("exit code = %d, want 2", domain.ExitCode(err))
	}
}

func TestMergeCLIOverridesFile(t *testing.T) {
	base := domain.Default()
	base.MinLength = 80
	base.DedupThreshold = 0.9

	overrides := domain.Default()
	overrides.MinLength = 120

	merged := Merge(base, overrides, map[string]bool{"min-length": true})
	if merged.MinLength != 120 {
		t.Errorf("min_length = %d, want CLI value 120", merged.MinLength)
	}
	if merged.DedupThreshold != 0.9 {
		t.Errorf("dedup_threshold = %g, want file value 0.9", merged.DedupThreshold)
	}
}

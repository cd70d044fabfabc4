package config

import (
	"context"
	"testing"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

type stubSource struct {
	columns []driven.ColumnDescriptor
}

func (s *stubSource) Next(_ context.Context) (map[string]string, bool, error) {
	return nil, false, nil
}

func (s *stubSource) PeekSchema(_ context.Context, _ int) ([]driven.ColumnDescriptor, error) {
	return s.columns, nil
}

func (s *stubSource) Close() error { return nil }

func validBase() domain.Config {
	cfg := domain.Default()
	cfg.TextColumn = "text"
	return cfg
}

func textSource() *stubSource {
	return &stubSource{columns: []driven.ColumnDescriptor{
		{Name: "text", Type: driven.ColumnString},
		{Name: "id", Type: driven.ColumnNumber},
	}}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := Validate(context.Background(), validBase(), textSource()); err != nil {
		t.Fatal(err)
	}
}

func TestValidateParameterRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"threshold below zero", func(c *domain.Config) { c.DedupThreshold = -0.1 }},
		{"threshold above one", func(c *domain.Config) { c.DedupThreshold = 1.1 }},
		{"negative min length", func(c *domain.Config) { c.MinLength = -1 }},
		{"zero batch size", func(c *domain.Config) { c.BatchSize = 0 }},
		{"overlap >= chunk size", func(c *domain.Config) { c.ChunkSize = 100; c.ChunkOverlap = 100 }},
		{"bad missing policy", func(c *domain.Config) { c.MissingValuePolicy = "ignore" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(&cfg)
			err := Validate(context.Background(), cfg, textSource())
			if err == nil {
				t.Fatal("accepted")
			}
			if domain.ExitCode(err) != 2 {
				t.Errorf("exit code = %d, want 2", domain.ExitCode(err))
			}
		})
	}
}

func TestValidateBoundaryValuesAccepted(t *testing.T) {
	cfg := validBase()
	cfg.DedupThreshold = 0
	if err := Validate(context.Background(), cfg, textSource()); err != nil {
		t.Errorf("threshold 0 rejected: %v", err)
	}
	cfg.DedupThreshold = 1
	if err := Validate(context.Background(), cfg, textSource()); err != nil {
		t.Errorf("threshold 1 rejected: %v", err)
	}
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 99
	if err := Validate(context.Background(), cfg, textSource()); err != nil {
		t.Errorf("overlap 99 of 100 rejected: %v", err)
	}
}

func TestValidateRequiredColumns(t *testing.T) {
	cfg := validBase()
	cfg.RequiredColumns = []string{"text", "id"}
	if err := Validate(context.Background(), cfg, textSource()); err != nil {
		t.Errorf("present columns rejected: %v", err)
	}

	cfg.RequiredColumns = []string{"text", "label"}
	err := Validate(context.Background(), cfg, textSource())
	if err == nil {
		t.Fatal("missing required column accepted")
	}
	if domain.ExitCode(err) != 2 {
		t.Errorf("exit code = %d, want 2", domain.ExitCode(err))
	}
}

func TestValidateTextColumnMustExist(t *testing.T) {
	cfg := validBase()
	cfg.TextColumn = "body"
	if err := Validate(context.Background(), cfg, textSource()); err == nil {
		t.Error("missing text column accepted")
	}
}

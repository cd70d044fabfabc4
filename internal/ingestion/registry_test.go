package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

type stubFormat struct {
	exts     []string
	priority int
	opened   *bool
}

func (f stubFormat) Extensions() []string { return f.exts }
func (f stubFormat) Priority() int        { return f.priority }

func (f stubFormat) Open(_ context.Context, _ string) (driven.RowSource, error) {
	if f.opened != nil {
		*f.opened = true
	}
	return nil, nil
}

func TestRegistryDispatchesByExtension(t *testing.T) {
	r := NewRegistry()
	opened := false
	r.Register(stubFormat{exts: []string{".foo"}, priority: 10, opened: &opened})

	if _, err := r.Open(context.Background(), "data.foo"); err != nil {
		t.Fatal(err)
	}
	if !opened {
		t.Error("matching format not opened")
	}
}

func TestRegistryHigherPriorityWins(t *testing.T) {
	r := NewRegistry()
	low, high := false, false
	r.Register(stubFormat{exts: []string{".foo"}, priority: 1, opened: &low})
	r.Register(stubFormat{exts: []string{".foo"}, priority: 10, opened: &high})

	if _, err := r.Open(context.Background(), "data.foo"); err != nil {
		t.Fatal(err)
	}
	if !high || low {
		t.Errorf("high=%v low=%v, want high only", high, low)
	}
}

func TestRegistryUnknownExtensionIsCapabilityError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Open(context.Background(), "data.xyz")
	if !errors.Is(err, domain.ErrCapabilityUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestDefaultRegistryStubsOptionalFormats(t *testing.T) {
	r := DefaultRegistry()
	for _, path := range []string{"data.parquet", "data.xlsx", "scans.pdf"} {
		_, err := r.Open(context.Background(), path)
		if !errors.Is(err, domain.ErrCapabilityUnavailable) {
			t.Errorf("%s: err = %v, want capability error", path, err)
		}
	}
}

func TestRegistryStdinIsNDJSON(t *testing.T) {
	r := DefaultRegistry()
	src, err := r.Open(context.Background(), "-")
	if err != nil {
		t.Fatal(err)
	}
	src.Close()
}

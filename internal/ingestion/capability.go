package ingestion

import (
	"context"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// capabilityStub represents a format whose extensions are recognized but
// whose backend was not wired in at build time. Opening it fails with a
// structured capability error rather than leaving the extension
// unrecognized.
type capabilityStub struct {
	name string
	exts []string
}

func (c capabilityStub) Extensions() []string { return c.exts }
func (c capabilityStub) Priority() int         { return 1 }

func (c capabilityStub) Open(_ context.Context, _ string) (driven.RowSource, error) {
	return nil, domain.NewCapabilityError(c.name, nil)
}

// RegisterCapabilityStubs registers the optional formats (Parquet, XLSX,
// PDF directories) as recognized-but-unavailable, so a run
// against a .parquet file fails with ErrCapabilityUnavailable naming the
// format ("parquet") rather than the bare extension. A real build that wires in an actual
// Parquet/XLSX/PDF backend registers a Format ahead of these in the
// registry (higher Priority wins) instead of calling this function for
// that extension.
func RegisterCapabilityStubs(r *Registry) {
	r.Register(capabilityStub{name: "parquet", exts: []string{".parquet"}})
	r.Register(capabilityStub{name: "xlsx", exts: []string{".xlsx"}})
	r.Register(capabilityStub{name: "pdf", exts: []string{".pdf", "*"}})
}

// Package ingestion implements the lazy row source over heterogeneous
// input formats. NDJSON and CSV are built in; Parquet, XLSX, and PDF
// directories are registered capabilities that fail with a structured
// capability error when no backend has been wired in.
package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// Format opens a RowSource for paths matching its extensions.
type Format interface {
	// Extensions returns the file extensions this format handles, lowercase
	// and dot-prefixed (e.g. ".ndjson"), or "*" for a directory-based format.
	Extensions() []string

	// Priority breaks ties when more than one format claims the same
	// extension (higher wins).
	Priority() int

	Open(ctx context.Context, path string) (driven.RowSource, error)
}

var _ driven.RowSourceOpener = (*Registry)(nil)

// Registry dispatches Open by file extension, highest-priority
// registered format first.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append(r.formats, f)
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := map[string]struct{}{}
	for _, f := range r.formats {
		for _, ext := range f.Extensions() {
			set[ext] = struct{}{}
		}
	}
	exts := make([]string, 0, len(set))
	for ext := range set {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open resolves path to the highest-priority registered format whose
// extension matches, or "-" for stdin (handled by the NDJSON format).
func (r *Registry) Open(ctx context.Context, path string) (driven.RowSource, error) {
	ext := extOf(path)

	r.mu.RLock()
	var matches []Format
	for _, f := range r.formats {
		for _, e := range f.Extensions() {
			if e == ext || (e == "*" && ext == "") {
				matches = append(matches, f)
				break
			}
		}
	}
	r.mu.RUnlock()

	if len(matches) == 0 {
		return nil, domain.NewCapabilityError(fmt.Sprintf("format %q", ext), nil)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Priority() > matches[j].Priority() })
	return matches[0].Open(ctx, path)
}

func extOf(path string) string {
	if path == "-" {
		return ".ndjson"
	}
	return strings.ToLower(filepath.Ext(path))
}

// DefaultRegistry registers the always-available built-in formats. Optional
// capabilities (Parquet, XLSX, PDF) are registered separately by callers
// that wired in a real backend; RegisterCapabilityStubs registers
// placeholders that fail with a clear capability error instead of the
// registry simply not recognizing the extension.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&NDJSONFormat{})
	r.Register(&CSVFormat{})
	RegisterCapabilityStubs(r)
	return r
}

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

var _ driven.ConfigRegistry = (*Registry)(nil)

// Registry dispatches a config file's extension to the backend that
// decodes it, the same priority-free extension-keyed shape as the
// ingestion format registry.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]driven.ConfigBackend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]driven.ConfigBackend)}
}

func (r *Registry) Register(b driven.ConfigBackend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range b.Extensions() {
		r.backends[strings.ToLower(ext)] = b
	}
}

func (r *Registry) Get(ext string) (driven.ConfigBackend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[strings.ToLower(ext)]
	return b, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.backends))
	for ext := range r.backends {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry registers JSON (always available) plus the YAML and
// TOML optional backends, both wired in directly by this build.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(jsonBackend{})
	r.Register(yamlBackend{})
	r.Register(tomlBackend{})
	return r
}

type jsonBackend struct{}

func (jsonBackend) Extensions() []string { return []string{".json"} }

// Decode rejects unknown keys so a typo in a config file fails fast
// instead of silently falling back to a default.
func (jsonBackend) Decode(data []byte) (domain.Config, error) {
	cfg := domain.Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type yamlBackend struct{}

func (yamlBackend) Extensions() []string { return []string{".yaml", ".yml"} }

func (yamlBackend) Decode(data []byte) (domain.Config, error) {
	cfg := domain.Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type tomlBackend struct{}

func (tomlBackend) Extensions() []string { return []string{".toml"} }

func (tomlBackend) Decode(data []byte) (domain.Config, error) {
	cfg := domain.Default()
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown configuration key %q", undecoded[0].String())
	}
	return cfg, nil
}

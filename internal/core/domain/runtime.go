package domain

import "sync"

// RuntimeContext tracks which optional backends are available for the
// current run. It is determined at startup from the capability registry
// (internal/runtime) and threaded explicitly through the orchestrator
// instead of living as package-level mutable state.
// Thread-safe for concurrent access.
type RuntimeContext struct {
	mu sync.RWMutex

	// Static, set at startup.
	CheckpointBackend string // "local", "postgres", or ""

	chunkingEnabled     bool
	parquetAvailable    bool
	xlsxAvailable       bool
	pdfAvailable        bool
	yamlConfigAvailable bool
	tomlConfigAvailable bool
	telemetryConfigured bool
	metricsConfigured   bool
	distributedLock     bool
}

// NewRuntimeContext creates a RuntimeContext with the given checkpoint backend.
func NewRuntimeContext(checkpointBackend string) *RuntimeContext {
	return &RuntimeContext{CheckpointBackend: checkpointBackend}
}

func (c *RuntimeContext) SetChunkingEnabled(v bool)     { c.set(&c.chunkingEnabled, v) }
func (c *RuntimeContext) ChunkingEnabled() bool         { return c.get(&c.chunkingEnabled) }
func (c *RuntimeContext) SetParquetAvailable(v bool)    { c.set(&c.parquetAvailable, v) }
func (c *RuntimeContext) ParquetAvailable() bool        { return c.get(&c.parquetAvailable) }
func (c *RuntimeContext) SetXLSXAvailable(v bool)       { c.set(&c.xlsxAvailable, v) }
func (c *RuntimeContext) XLSXAvailable() bool           { return c.get(&c.xlsxAvailable) }
func (c *RuntimeContext) SetPDFAvailable(v bool)        { c.set(&c.pdfAvailable, v) }
func (c *RuntimeContext) PDFAvailable() bool            { return c.get(&c.pdfAvailable) }
func (c *RuntimeContext) SetYAMLConfigAvailable(v bool) { c.set(&c.yamlConfigAvailable, v) }
func (c *RuntimeContext) YAMLConfigAvailable() bool     { return c.get(&c.yamlConfigAvailable) }
func (c *RuntimeContext) SetTOMLConfigAvailable(v bool) { c.set(&c.tomlConfigAvailable, v) }
func (c *RuntimeContext) TOMLConfigAvailable() bool     { return c.get(&c.tomlConfigAvailable) }
func (c *RuntimeContext) SetTelemetryConfigured(v bool) { c.set(&c.telemetryConfigured, v) }
func (c *RuntimeContext) TelemetryConfigured() bool     { return c.get(&c.telemetryConfigured) }
func (c *RuntimeContext) SetMetricsConfigured(v bool)   { c.set(&c.metricsConfigured, v) }
func (c *RuntimeContext) MetricsConfigured() bool       { return c.get(&c.metricsConfigured) }
func (c *RuntimeContext) SetDistributedLock(v bool)     { c.set(&c.distributedLock, v) }
func (c *RuntimeContext) DistributedLock() bool         { return c.get(&c.distributedLock) }

func (c *RuntimeContext) set(field *bool, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*field = v
}

func (c *RuntimeContext) get(field *bool) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *field
}

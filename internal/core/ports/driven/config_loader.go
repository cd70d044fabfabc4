package driven

import "github.com/entropyguard/entropyguard/internal/core/domain"

// ConfigBackend decodes a config file of one format (JSON, YAML, TOML) into
// a domain.Config. JSON is always registered; YAML/TOML are optional
// capabilities registered at startup.
type ConfigBackend interface {
	// Extensions returns the file extensions this backend handles, e.g. [".yaml", ".yml"].
	Extensions() []string

	Decode(data []byte) (domain.Config, error)
}

// ConfigRegistry dispatches a config file path to the matching backend.
type ConfigRegistry interface {
	Get(ext string) (ConfigBackend, bool)
	Register(backend ConfigBackend)
	List() []string
}

// Telemetry delivers the completed audit array and a signed metadata header
// to an optional collector URL. Failure to deliver is logged, never fatal.
type Telemetry interface {
	Report(runID string, configFingerprint domain.ConfigFingerprint, auditPath string) error
}

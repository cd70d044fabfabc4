package domain

// Config is the fully-resolved set of pipeline parameters, after CLI flags
// have overridden any value loaded from a config file. Keys mirror the CLI
// flag surface in snake_case when (de)serialized by internal/config.
type Config struct {
	Input  string `json:"input" yaml:"input" toml:"input"`
	Output string `json:"output" yaml:"output" toml:"output"`

	TextColumn       string   `json:"text_column" yaml:"text_column" toml:"text_column"`
	RequiredColumns  []string `json:"required_columns" yaml:"required_columns" toml:"required_columns"`

	MinLength      int     `json:"min_length" yaml:"min_length" toml:"min_length"`
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold" toml:"dedup_threshold"`

	ModelName string `json:"model_name" yaml:"model_name" toml:"model_name"`
	BatchSize int    `json:"batch_size" yaml:"batch_size" toml:"batch_size"`

	ChunkSize    int      `json:"chunk_size" yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap" yaml:"chunk_overlap" toml:"chunk_overlap"`
	Separators   []string `json:"separators" yaml:"separators" toml:"separators"`

	MissingValuePolicy string `json:"missing_value_policy" yaml:"missing_value_policy" toml:"missing_value_policy"`
	FillValue          string `json:"fill_value" yaml:"fill_value" toml:"fill_value"`

	// NormalizeText, when true, makes the sanitizer emit the lowercased,
	// whitespace-collapsed form instead of preserving original casing.
	// Fingerprinting always hashes the normalized form regardless of this
	// flag; this only controls what C3 writes back to the Record.
	NormalizeText bool `json:"normalize_text" yaml:"normalize_text" toml:"normalize_text"`

	AuditLogPath string `json:"audit_log" yaml:"audit_log" toml:"audit_log"`
	MetricsPath  string `json:"metrics_path" yaml:"metrics_path" toml:"metrics_path"`

	CheckpointDir string `json:"checkpoint_dir" yaml:"checkpoint_dir" toml:"checkpoint_dir"`
	TelemetryURL  string `json:"telemetry_url" yaml:"telemetry_url" toml:"telemetry_url"`

	MaxDiskBytes  int64 `json:"max_disk_bytes" yaml:"max_disk_bytes" toml:"max_disk_bytes"`
	MaxMemBytes   int64 `json:"max_mem_bytes" yaml:"max_mem_bytes" toml:"max_mem_bytes"`
	TimeoutSecond int   `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`

	JSON    bool `json:"-" yaml:"-" toml:"-"`
	Verbose bool `json:"-" yaml:"-" toml:"-"`
	Quiet   bool `json:"-" yaml:"-" toml:"-"`
	DryRun  bool `json:"-" yaml:"-" toml:"-"`
}

// ConfigFingerprint returns the deterministic identity of the parameters
// that affect pipeline output, used by the checkpoint manager to bind a
// snapshot to the config that produced it. Defined here so both
// internal/config and internal/checkpoint can depend on the same shape
// without importing each other.
type ConfigFingerprint string

// Default returns a Config populated with the documented defaults, before
// any file or CLI override is applied.
func Default() Config {
	return Config{
		Input:              "-",
		Output:             "-",
		MinLength:          50,
		DedupThreshold:     0.95,
		BatchSize:          10000,
		ChunkOverlap:       50,
		MissingValuePolicy: "drop",
		Separators:         []string{"\n\n", "\n", " ", ""},
	}
}

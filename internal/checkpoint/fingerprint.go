package checkpoint

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// ConfigFingerprint hashes the subset of Config fields that change the
// meaning of a checkpoint (everything except run-level knobs like
// verbosity or audit/metrics paths). Two runs with the same fingerprint
// are guaranteed to have made the same dedup/chunk/validate decisions.
func ConfigFingerprint(cfg domain.Config) domain.ConfigFingerprint {
	relevant := struct {
		TextColumn         string
		RequiredColumns    []string
		MinLength          int
		DedupThreshold     float64
		ModelName          string
		ChunkSize          int
		ChunkOverlap       int
		Separators         []string
		MissingValuePolicy string
		FillValue          string
		NormalizeText      bool
	}{
		TextColumn:         cfg.TextColumn,
		RequiredColumns:    cfg.RequiredColumns,
		MinLength:          cfg.MinLength,
		DedupThreshold:     cfg.DedupThreshold,
		ModelName:          cfg.ModelName,
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		Separators:         cfg.Separators,
		MissingValuePolicy: cfg.MissingValuePolicy,
		FillValue:          cfg.FillValue,
		NormalizeText:      cfg.NormalizeText,
	}
	data, err := json.Marshal(relevant)
	if err != nil {
		// Marshal of a fixed, field-by-field struct cannot fail; keep the
		// zero-value fallback explicit rather than ignoring err silently.
		return domain.ConfigFingerprint("unmarshalable")
	}
	return domain.ConfigFingerprint(hexSum(data))
}

// InputFingerprint hashes the input path together with its size and
// modtime signature passed in by the caller (the CLI stats the file once
// at startup), so a changed input invalidates old checkpoints
// without requiring a full content hash of potentially huge files.
func InputFingerprint(path string, sizeBytes int64, modUnixNano int64) string {
	data, _ := json.Marshal(struct {
		Path string
		Size int64
		Mod  int64
	}{path, sizeBytes, modUnixNano})
	return hexSum(data)
}

func hexSum(data []byte) string {
	sum := xxhash.Sum64(data)
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 0; i < 8; i++ {
		b := byte(sum >> (8 * (7 - i)))
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}

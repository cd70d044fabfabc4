// Package checkpoint implements best-effort, content-addressed snapshots
// of cleaned records after each named pipeline stage, so a killed run can
// resume instead of reprocessing from byte zero.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

var _ driven.Checkpointer = (*FSStore)(nil)

// FSStore is the default Checkpointer: one JSON file per
// (input_fingerprint, config_fingerprint, stage), addressed by a path
// derived entirely from the key so two concurrent runs of the same input
// and config land on the same file. Writes are atomic (temp file +
// rename), the same durability pattern as audit.Log.Flush.
type FSStore struct {
	dir string
}

// NewFSStore builds a filesystem checkpoint store rooted at dir. dir is
// created on first Save if it does not already exist.
func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

type fsSnapshot struct {
	Key     driven.CheckpointKey `json:"key"`
	Records []domain.Record      `json:"records"`
}

func (s *FSStore) pathFor(key driven.CheckpointKey) string {
	name := fmt.Sprintf("%s-%s-%s.json", key.InputFingerprint, key.ConfigFingerprint, key.Stage)
	return filepath.Join(s.dir, name)
}

// Save writes the snapshot atomically. Callers must treat a non-nil
// error as "checkpoint skipped", never as a run failure.
func (s *FSStore) Save(ctx context.Context, key driven.CheckpointKey, records []domain.Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir %s: %w", s.dir, err)
	}
	snap := fsSnapshot{Key: key, Records: records}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal snapshot: %w", err)
	}
	dest := s.pathFor(key)
	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: rename into place: %w", err)
	}
	return nil
}

// Load returns domain.ErrNotFound if no snapshot exists for key.
func (s *FSStore) Load(ctx context.Context, key driven.CheckpointKey) ([]domain.Record, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checkpoint %s/%s/%s: %w", key.InputFingerprint, key.ConfigFingerprint, key.Stage, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("checkpoint: read snapshot: %w", err)
	}
	var snap fsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal snapshot: %w", err)
	}
	return snap.Records, nil
}

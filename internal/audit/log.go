// Package audit holds the append-only audit event log, the aggregate
// Stats counters, and the display-only cost estimate. The log is flushed
// atomically to a JSON array file at run end.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// Log accumulates AuditEvents in memory in detection order. It is written
// only by the orchestrator's driver thread during a batch, but Append is
// safe to call from the stage fan-out goroutines too (events are
// discovered per-row, but appended back on the driver after each batch's
// fan-out joins), so it takes a mutex rather than assuming single-writer.
type Log struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{}
}

// Append records one or more events, preserving call order.
func (l *Log) Append(events ...domain.AuditEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
}

// Events returns a copy of every event recorded so far.
func (l *Log) Events() []domain.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports how many events have been recorded.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Flush atomically rewrites path with the current event array: write to a
// temp file in the same directory, then rename over the target. Flush is
// safe to call more than once (e.g. on partial failure, to persist
// forensic state).
func (l *Log) Flush(path string) error {
	if path == "" {
		return nil
	}
	l.mu.Lock()
	events := make([]domain.AuditEvent, len(l.events))
	copy(events, l.events)
	l.mu.Unlock()

	if events == nil {
		events = []domain.AuditEvent{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".audit-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp audit file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp audit file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp audit file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename audit file into place: %w", err)
	}
	return nil
}

package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

func TestLogAppendPreservesOrder(t *testing.T) {
	l := NewLog()
	l.Append(domain.AuditEvent{RowIndex: 2, Reason: domain.ReasonExactDuplicate})
	l.Append(domain.AuditEvent{RowIndex: 0, Reason: domain.ReasonValidationTooShort})

	events := l.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d", len(events))
	}
	if events[0].RowIndex != 2 || events[1].RowIndex != 0 {
		t.Error("detection order not preserved")
	}
}

func TestLogEventsReturnsCopy(t *testing.T) {
	l := NewLog()
	l.Append(domain.AuditEvent{RowIndex: 1})
	events := l.Events()
	events[0].RowIndex = 99
	if l.Events()[0].RowIndex != 1 {
		t.Error("Events exposed internal slice")
	}
}

func TestLogFlushWritesJSONArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.json")

	l := NewLog()
	l.Append(
		domain.AuditEvent{RowIndex: 0, Reason: domain.ReasonExactDuplicate, Details: "exact duplicate of row 0"},
		domain.AuditEvent{RowIndex: 4, Reason: domain.ReasonValidationTooShort, Details: "length 3 below min_length 50"},
	)
	if err := l.Flush(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var events []domain.AuditEvent
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("not a JSON array: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d", len(events))
	}
	if events[0].Reason != domain.ReasonExactDuplicate {
		t.Errorf("reason = %s", events[0].Reason)
	}
}

func TestLogFlushEmptyLogWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	if err := NewLog().Flush(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var events []domain.AuditEvent
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d", len(events))
	}
}

func TestLogFlushOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	l := NewLog()
	l.Append(domain.AuditEvent{RowIndex: 0})
	if err := l.Flush(path); err != nil {
		t.Fatal(err)
	}
	l.Append(domain.AuditEvent{RowIndex: 1})
	if err := l.Flush(path); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var events []domain.AuditEvent
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("rewritten file has %d events, want 2", len(events))
	}
	// No stray temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestLogFlushNoPathIsNoop(t *testing.T) {
	if err := NewLog().Flush(""); err != nil {
		t.Errorf("flush with empty path: %v", err)
	}
}

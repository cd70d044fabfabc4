// Package validation implements the final gate: dropping records whose
// sanitized text is null/empty or shorter than min_length, counted in
// Unicode scalar values rather than bytes.
package validation

import (
	"fmt"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// Validator enforces the length and emptiness invariants.
type Validator struct {
	MinLength int
}

// New builds a Validator from the resolved pipeline config.
func New(cfg domain.Config) *Validator {
	return &Validator{MinLength: cfg.MinLength}
}

// Check returns a non-nil AuditEvent when rec should be dropped: empty
// text, or text shorter than MinLength runes.
func (v *Validator) Check(rec domain.Record) *domain.AuditEvent {
	length := len([]rune(rec.Text))
	if length == 0 {
		return &domain.AuditEvent{
			RowIndex: rec.OriginalIndex,
			Reason:   domain.ReasonValidationEmpty,
			Details:  "text is empty after sanitization",
		}
	}
	if length < v.MinLength {
		return &domain.AuditEvent{
			RowIndex: rec.OriginalIndex,
			Reason:   domain.ReasonValidationTooShort,
			Details:  fmt.Sprintf("length %d below min_length %d", length, v.MinLength),
		}
	}
	return nil
}

// Filter applies Check to every record, returning survivors in order and
// one audit event per drop.
func (v *Validator) Filter(records []domain.Record) ([]domain.Record, []domain.AuditEvent) {
	out := make([]domain.Record, 0, len(records))
	var events []domain.AuditEvent
	for _, rec := range records {
		if ev := v.Check(rec); ev != nil {
			events = append(events, *ev)
			continue
		}
		out = append(out, rec)
	}
	return out, events
}

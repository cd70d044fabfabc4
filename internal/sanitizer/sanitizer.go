// Package sanitizer implements per-row text normalization, PII scrubbing,
// and missing-value handling. Pure per row; batch-parallel across a
// single batch via errgroup.
package sanitizer

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// Sanitizer applies the per-record transform in order: trim, collapse
// whitespace, optional lowercase-in-place, PII scrubbing, and the
// missing-value policy.
type Sanitizer struct {
	MissingValuePolicy string // "drop" or "fill"
	FillValue          string
	NormalizeText      bool // emit the lowercased form instead of preserving casing
	Concurrency        int
}

// New builds a Sanitizer from the resolved pipeline config.
func New(cfg domain.Config) *Sanitizer {
	return &Sanitizer{
		MissingValuePolicy: cfg.MissingValuePolicy,
		FillValue:          cfg.FillValue,
		NormalizeText:      cfg.NormalizeText,
		Concurrency:        16,
	}
}

// Result is what SanitizeBatch returns for a batch: the surviving records,
// in their original relative order, plus one audit event per row the
// missing-value policy dropped.
type Result struct {
	Records []domain.Record
	Dropped []domain.AuditEvent
}

// SanitizeBatch transforms every record in records, running the per-row
// work across a bounded pool of goroutines. Non-text passthrough fields
// are untouched. Order of surviving records is preserved.
func (s *Sanitizer) SanitizeBatch(ctx context.Context, records []domain.Record) (Result, error) {
	cleaned := make([]domain.Record, len(records))
	keep := make([]bool, len(records))
	drops := make([]*domain.AuditEvent, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)

	for i := range records {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rec, ev := s.sanitizeOne(records[i])
			cleaned[i] = rec
			if ev != nil {
				drops[i] = ev
			} else {
				keep[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, domain.NewProcessingError("sanitizer", "SanitizeBatch", err)
	}

	out := Result{Records: make([]domain.Record, 0, len(records))}
	for i, rec := range cleaned {
		if keep[i] {
			out.Records = append(out.Records, rec)
		} else if drops[i] != nil {
			out.Dropped = append(out.Dropped, *drops[i])
		}
	}
	return out, nil
}

// sanitizeOne applies the ordered transform to a single record. It returns
// a non-nil AuditEvent (and no record) when the missing-value policy drops
// the row.
func (s *Sanitizer) sanitizeOne(rec domain.Record) (domain.Record, *domain.AuditEvent) {
	text := collapseWhitespace(strings.TrimSpace(rec.Text))
	if s.NormalizeText {
		text = strings.ToLower(text)
	}
	text = scrubPII(text)

	if text == "" {
		switch s.MissingValuePolicy {
		case "fill":
			text = s.FillValue
		default: // "drop"
			return domain.Record{}, &domain.AuditEvent{
				RowIndex: rec.OriginalIndex,
				Reason:   domain.ReasonSanitizationDropNull,
				Details:  "text is null or empty after trim",
			}
		}
	}

	rec.Text = text
	return rec, nil
}

// collapseWhitespace replaces every run of Unicode whitespace with a single
// ASCII space.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return b.String()
}

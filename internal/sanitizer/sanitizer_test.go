package sanitizer

import (
	"context"
	"strings"
	"testing"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

func TestSanitizeOneTrimsAndCollapsesWhitespace(t *testing.T) {
	s := &Sanitizer{MissingValuePolicy: "drop"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"leading and trailing", "  hello world  ", "hello world"},
		{"internal runs", "hello\t\t world", "hello world"},
		{"newlines and tabs", "a\nb\tc", "a b c"},
		{"already clean", "clean text", "clean text"},
		{"unicode spaces", "a b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ev := s.sanitizeOne(domain.Record{Text: tt.in})
			if ev != nil {
				t.Fatalf("unexpected drop: %v", ev)
			}
			if rec.Text != tt.want {
				t.Errorf("got %q, want %q", rec.Text, tt.want)
			}
		})
	}
}

func TestSanitizeOnePreservesCasingByDefault(t *testing.T) {
	s := &Sanitizer{MissingValuePolicy: "drop"}
	rec, _ := s.sanitizeOne(domain.Record{Text: "Hello World"})
	if rec.Text != "Hello World" {
		t.Errorf("casing changed: %q", rec.Text)
	}
}

func TestSanitizeOneNormalizesWhenRequested(t *testing.T) {
	s := &Sanitizer{MissingValuePolicy: "drop", NormalizeText: true}
	rec, _ := s.sanitizeOne(domain.Record{Text: "Hello  World"})
	if rec.Text != "hello world" {
		t.Errorf("got %q, want lowercased collapsed form", rec.Text)
	}
}

func TestSanitizeOneDropPolicy(t *testing.T) {
	s := &Sanitizer{MissingValuePolicy: "drop"}
	_, ev := s.sanitizeOne(domain.Record{OriginalIndex: 7, Text: "   "})
	if ev == nil {
		t.Fatal("expected drop event")
	}
	if ev.Reason != domain.ReasonSanitizationDropNull {
		t.Errorf("reason = %s", ev.Reason)
	}
	if ev.RowIndex != 7 {
		t.Errorf("row index = %d", ev.RowIndex)
	}
}

func TestSanitizeOneFillPolicy(t *testing.T) {
	s := &Sanitizer{MissingValuePolicy: "fill", FillValue: "n/a"}
	rec, ev := s.sanitizeOne(domain.Record{Text: ""})
	if ev != nil {
		t.Fatalf("fill policy must not drop: %v", ev)
	}
	if rec.Text != "n/a" {
		t.Errorf("got %q, want fill value", rec.Text)
	}
}

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		mustLose   []string
		mustGain   []string
	}{
		{
			name:     "email",
			in:       "email me at a@b.com today",
			mustLose: []string{"a@b.com"},
			mustGain: []string{"[EMAIL_REDACTED]"},
		},
		{
			name:     "us phone",
			in:       "call 555-123-4567 now",
			mustLose: []string{"555-123-4567"},
			mustGain: []string{"[PHONE_REDACTED]"},
		},
		{
			name:     "international phone",
			in:       "dial +1 555-123-4567 ext",
			mustLose: []string{"555-123-4567"},
			mustGain: []string{"[PHONE_REDACTED]"},
		},
		{
			name:     "ssn",
			in:       "ssn 123-45-6789 on file",
			mustLose: []string{"123-45-6789"},
			mustGain: []string{"[SSN_REDACTED]"},
		},
		{
			name:     "card",
			in:       "card 4111 1111 1111 1111 charged",
			mustLose: []string{"4111 1111 1111 1111"},
			mustGain: []string{"[CARD_REDACTED]"},
		},
		{
			name:     "email and phone together",
			in:       "email me at a@b.com or call 555-123-4567",
			mustLose: []string{"a@b.com", "555-123-4567"},
			mustGain: []string{"[EMAIL_REDACTED]", "[PHONE_REDACTED]"},
		},
		{
			name: "clean text untouched",
			in:   "no sensitive content here",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scrubPII(tt.in)
			for _, lost := range tt.mustLose {
				if strings.Contains(got, lost) {
					t.Errorf("%q still contains %q", got, lost)
				}
			}
			for _, gained := range tt.mustGain {
				if !strings.Contains(got, gained) {
					t.Errorf("%q missing placeholder %q", got, gained)
				}
			}
			if len(tt.mustLose) == 0 && len(tt.mustGain) == 0 && got != tt.in {
				t.Errorf("clean text changed: %q -> %q", tt.in, got)
			}
		})
	}
}

func TestSanitizeBatchPreservesOrderAndPassthrough(t *testing.T) {
	s := New(domain.Default())
	records := []domain.Record{
		{OriginalIndex: 0, Text: " one ", Passthrough: map[string]string{"id": "a"}},
		{OriginalIndex: 1, Text: ""},
		{OriginalIndex: 2, Text: " three ", Passthrough: map[string]string{"id": "c"}},
	}

	result, err := s.SanitizeBatch(context.Background(), records)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("survivors = %d, want 2", len(result.Records))
	}
	if result.Records[0].OriginalIndex != 0 || result.Records[1].OriginalIndex != 2 {
		t.Errorf("order not preserved: %v", result.Records)
	}
	if result.Records[0].Passthrough["id"] != "a" {
		t.Error("passthrough fields lost")
	}
	if len(result.Dropped) != 1 || result.Dropped[0].RowIndex != 1 {
		t.Errorf("dropped = %v", result.Dropped)
	}
}

// Package dedup implements the first dedup stage, the exact-duplicate
// detector: a process-wide mapping from the 64-bit fingerprint of
// normalized text to the original_index of its first-seen Record.
package dedup

import (
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// Normalize collapses text to the form fingerprinted for exact-duplicate
// detection: trimmed, internal whitespace collapsed to a single space,
// lowercased. This is independent of whether the sanitizer is configured
// to emit normalized text; fingerprinting always hashes this form.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastWasSpace := true // treat leading run of whitespace as already-collapsed
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(unicode.ToLower(r))
		lastWasSpace = false
	}
	return strings.TrimSpace(b.String())
}

// Fingerprint returns the 64-bit non-cryptographic hash of the normalized
// text. Equal fingerprints are treated as duplicates; the false-positive
// rate from hash collisions is negligible at the scale this pipeline
// targets.
func Fingerprint(text string) domain.Fingerprint {
	return domain.Fingerprint(xxhash.Sum64String(Normalize(text)))
}

// Registry is the cross-batch fingerprint -> canonical original_index map.
// It is written only by the orchestrator's single driver thread; in-batch
// parallel workers never touch it, so it needs no internal locking.
type Registry struct {
	seen map[domain.Fingerprint]int64
}

// NewRegistry creates an empty fingerprint registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[domain.Fingerprint]int64)}
}

// CheckAndAdd looks up text's fingerprint. If unseen, it records
// originalIndex as the canonical representative and returns (0, false). If
// seen, it returns the canonical original_index recorded for that
// fingerprint and true, without mutating the registry: first-wins.
func (r *Registry) CheckAndAdd(text string, originalIndex int64) (canonical int64, duplicate bool) {
	fp := Fingerprint(text)
	if canon, ok := r.seen[fp]; ok {
		return canon, true
	}
	r.seen[fp] = originalIndex
	return 0, false
}

// Size returns the number of distinct fingerprints recorded so far.
func (r *Registry) Size() int { return len(r.seen) }

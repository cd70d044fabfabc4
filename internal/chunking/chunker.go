// Package chunking implements the optional recursive split of long texts
// into bounded, overlapping windows, driven by an ordered separator list.
package chunking

import (
	"strings"
)

// maxRecursionDepth caps how many separator levels (and, beyond the last
// separator, hard fixed-width splits) a single segment may recurse through.
const maxRecursionDepth = 128

// Chunk is one window of a parent Record's sanitized text.
type Chunk struct {
	Text     string
	Position int
}

// Splitter recursively splits text by an ordered separator list. At each
// level, segments already within Size are kept intact; longer segments
// split on the next separator. Beyond the separator list, or past
// maxRecursionDepth, a hard fixed-width split is used.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// New builds a Splitter. separators defaults to paragraph break, newline,
// space, and the empty-string sentinel when nil.
func New(size, overlap int, separators []string) *Splitter {
	if separators == nil {
		separators = []string{"\n\n", "\n", " ", ""}
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: separators}
}

// Split divides text into chunks of at most Size runes, each chunk (after
// the first) overlapping the previous one's tail by exactly Overlap
// characters. Concatenating the chunks with that overlap removed
// reproduces text exactly.
func (s *Splitter) Split(text string) []Chunk {
	if len([]rune(text)) <= s.Size {
		return []Chunk{{Text: text, Position: 0}}
	}

	// Segments leave room for the overlap prepended to every chunk after
	// the first, so no chunk exceeds Size.
	inner := *s
	if s.Overlap > 0 && s.Overlap < s.Size {
		inner.Size = s.Size - s.Overlap
	}
	segments := inner.recursiveSplit(text, 0)
	return s.applyOverlap(segments)
}

// recursiveSplit breaks text into pieces each <= Size runes, preferring
// the earliest separator in s.Separators that yields pieces within Size.
func (s *Splitter) recursiveSplit(text string, depth int) []string {
	if len([]rune(text)) <= s.Size {
		return []string{text}
	}
	if depth >= maxRecursionDepth {
		return s.hardSplit(text)
	}

	sepIdx := depth
	if sepIdx >= len(s.Separators) {
		return s.hardSplit(text)
	}
	sep := s.Separators[sepIdx]

	var pieces []string
	if sep == "" {
		pieces = s.hardSplit(text)
	} else {
		pieces = splitKeepingSeparator(text, sep)
	}

	var out []string
	for _, p := range pieces {
		if len([]rune(p)) <= s.Size {
			out = append(out, p)
			continue
		}
		out = append(out, s.recursiveSplit(p, depth+1)...)
	}
	return mergeUndersized(out, s.Size)
}

// splitKeepingSeparator splits on sep, re-appending sep to every piece but
// the last so rejoining with strings.Join(pieces, "") reproduces text.
func splitKeepingSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return parts
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			out[i] = p + sep
		} else {
			out[i] = p
		}
	}
	return out
}

// mergeUndersized greedily recombines adjacent small pieces up to Size, so
// recursion doesn't leave behind a long tail of tiny fragments.
func mergeUndersized(pieces []string, size int) []string {
	if len(pieces) == 0 {
		return pieces
	}
	var out []string
	cur := pieces[0]
	for _, p := range pieces[1:] {
		if len([]rune(cur))+len([]rune(p)) <= size {
			cur += p
		} else {
			out = append(out, cur)
			cur = p
		}
	}
	out = append(out, cur)
	return out
}

// hardSplit performs a fixed-width split by rune count, used once no
// separator applies or the recursion cap is hit.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += s.Size {
		end := i + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// applyOverlap joins recursively-split segments back into the final
// sequence of chunks, each overlapping the previous chunk's tail by exactly
// Overlap characters.
func (s *Splitter) applyOverlap(segments []string) []Chunk {
	if len(segments) <= 1 {
		chunks := make([]Chunk, len(segments))
		for i, seg := range segments {
			chunks[i] = Chunk{Text: seg, Position: i}
		}
		return chunks
	}

	chunks := make([]Chunk, 0, len(segments))
	chunks = append(chunks, Chunk{Text: segments[0], Position: 0})

	for i := 1; i < len(segments); i++ {
		prev := []rune(segments[i-1])
		overlap := s.Overlap
		if overlap > len(prev) {
			overlap = len(prev)
		}
		tail := string(prev[len(prev)-overlap:])
		text := tail + segments[i]
		// A merge upstream may have produced a piece longer than Size once
		// the overlap is prepended; re-cap it by trimming from the end,
		// the overlap itself is never sacrificed.
		if r := []rune(text); len(r) > s.Size+overlap {
			text = string(r[:s.Size+overlap])
		}
		chunks = append(chunks, Chunk{Text: text, Position: i})
	}
	return chunks
}

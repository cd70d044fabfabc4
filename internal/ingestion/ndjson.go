package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// NDJSONFormat reads one JSON object per line. It is the always-available
// default and the output writer's format.
type NDJSONFormat struct{}

func (NDJSONFormat) Extensions() []string { return []string{".ndjson", ".jsonl"} }
func (NDJSONFormat) Priority() int        { return 10 }

func (NDJSONFormat) Open(_ context.Context, path string) (driven.RowSource, error) {
	f, err := openPathOrStdin(path)
	if err != nil {
		return nil, err
	}
	return &ndjsonSource{f: f, scanner: bufio.NewScanner(f)}, nil
}

func openPathOrStdin(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

type ndjsonSource struct {
	f        io.ReadCloser
	scanner  *bufio.Scanner
	lineNum  int64
	buffered []map[string]string
}

func (s *ndjsonSource) Next(_ context.Context) (map[string]string, bool, error) {
	if len(s.buffered) > 0 {
		row := s.buffered[0]
		s.buffered = s.buffered[1:]
		return row, true, nil
	}
	for s.scanner.Scan() {
		s.lineNum++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		row, err := decodeJSONLine(line)
		if err != nil {
			return nil, true, fmt.Errorf("ndjson line %d: %w", s.lineNum, err)
		}
		return row, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("ndjson scan: %w", err)
	}
	return nil, false, nil
}

func decodeJSONLine(line string) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, err
	}
	row := make(map[string]string, len(raw))
	for k, v := range raw {
		row[k] = rawToString(v)
	}
	return row, nil
}

func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Non-string scalar (number, bool, null) or nested structure: keep its
	// literal JSON text as the passthrough value.
	return strings.Trim(string(raw), `"`)
}

func (s *ndjsonSource) PeekSchema(ctx context.Context, n int) ([]driven.ColumnDescriptor, error) {
	return sampleSchema(ctx, s, n)
}

func (s *ndjsonSource) Close() error { return s.f.Close() }

func (s *ndjsonSource) pushBack(rows []map[string]string) {
	s.buffered = append(rows, s.buffered...)
}

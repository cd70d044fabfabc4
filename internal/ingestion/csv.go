package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// CSVFormat reads a header-required CSV file.
type CSVFormat struct{}

func (CSVFormat) Extensions() []string { return []string{".csv"} }
func (CSVFormat) Priority() int        { return 10 }

func (CSVFormat) Open(_ context.Context, path string) (driven.RowSource, error) {
	f, err := openPathOrStdin(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv header: %w", err)
	}
	return &csvSource{f: f, r: r, header: header}, nil
}

type csvSource struct {
	f        io.ReadCloser
	r        *csv.Reader
	header   []string
	buffered []map[string]string
}

func (s *csvSource) Next(_ context.Context) (map[string]string, bool, error) {
	if len(s.buffered) > 0 {
		row := s.buffered[0]
		s.buffered = s.buffered[1:]
		return row, true, nil
	}
	fields, err := s.r.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("csv read: %w", err)
	}
	row := make(map[string]string, len(s.header))
	for i, col := range s.header {
		if i < len(fields) {
			row[col] = fields[i]
		} else {
			row[col] = ""
		}
	}
	return row, true, nil
}

func (s *csvSource) PeekSchema(ctx context.Context, n int) ([]driven.ColumnDescriptor, error) {
	return sampleSchema(ctx, s, n)
}

func (s *csvSource) pushBack(rows []map[string]string) {
	s.buffered = append(rows, s.buffered...)
}

func (s *csvSource) Close() error { return s.f.Close() }

package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

var _ driven.RowSink = (*NDJSONSink)(nil)

// NDJSONSink writes cleaned records as one JSON object per line, the
// pipeline's only output format. Records are appended in arrival order
// through a fixed-size bufio.Writer that Close flushes.
type NDJSONSink struct {
	w         *bufio.Writer
	closer    io.Closer
	textCol   string
	wroteRows int64
}

// NewNDJSONSink opens path for writing, or wraps stdout when path is "-"
// or empty. textColumn names the JSON key the record's text is emitted
// under.
func NewNDJSONSink(path, textColumn string) (*NDJSONSink, error) {
	if textColumn == "" {
		textColumn = "text"
	}
	if path == "-" || path == "" {
		return &NDJSONSink{w: bufio.NewWriter(os.Stdout), closer: nil, textCol: textColumn}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, domain.NewResourceError("ingestion.NewNDJSONSink", fmt.Errorf("create %s: %w", path, err))
	}
	return &NDJSONSink{w: bufio.NewWriter(f), closer: f, textCol: textColumn}, nil
}

// Write encodes rec as one NDJSON line: the text column, every
// passthrough field, and the record's stable identity. Chunked records
// additionally carry their chunk_position so a consumer can re-stitch
// them if it wants to.
func (s *NDJSONSink) Write(ctx context.Context, rec domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := make(map[string]string, len(rec.Passthrough)+3)
	for k, v := range rec.Passthrough {
		row[k] = v
	}
	row[s.textCol] = rec.Text
	row["original_index"] = strconv.FormatInt(rec.OriginalIndex, 10)
	if rec.IsChunk() {
		row["chunk_position"] = strconv.Itoa(rec.ChunkPosition)
	}

	data, err := json.Marshal(row)
	if err != nil {
		return domain.NewProcessingError("writer", "Write", err)
	}
	if _, err := s.w.Write(data); err != nil {
		return domain.NewResourceError("ingestion.NDJSONSink.Write", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return domain.NewResourceError("ingestion.NDJSONSink.Write", err)
	}
	s.wroteRows++
	return nil
}

// Rows reports how many records have been written so far.
func (s *NDJSONSink) Rows() int64 { return s.wroteRows }

// Close flushes buffered output and closes the underlying file. Stdout is
// flushed but left open.
func (s *NDJSONSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return domain.NewResourceError("ingestion.NDJSONSink.Close", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

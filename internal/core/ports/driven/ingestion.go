package driven

import (
	"context"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

// ColumnType is the discovered type of a source column, used by schema
// probing and text-column auto-detection.
type ColumnType int

const (
	ColumnUnknown ColumnType = iota
	ColumnString
	ColumnNumber
	ColumnBool
)

// ColumnDescriptor names a column and its discovered type.
type ColumnDescriptor struct {
	Name string
	Type ColumnType
}

// RowSource is a lazy row iterator over a heterogeneous input format
// (NDJSON, CSV, or a registered capability such as Parquet/XLSX/PDF).
// Implementations must not materialize the whole file.
type RowSource interface {
	// Next returns the next raw row as a string-keyed map, or ok=false with a
	// nil error at end of stream.
	Next(ctx context.Context) (row map[string]string, ok bool, err error)

	// PeekSchema samples up to n rows without consuming the stream for Next,
	// returning the discovered columns.
	PeekSchema(ctx context.Context, n int) ([]ColumnDescriptor, error)

	Close() error
}

// RowSourceOpener opens a RowSource for a path (file path, directory, or "-"
// for stdin), dispatching on the registered format.
type RowSourceOpener interface {
	Open(ctx context.Context, path string) (RowSource, error)
}

// RowSink is the output writer for cleaned records, appended in arrival order.
type RowSink interface {
	Write(ctx context.Context, rec domain.Record) error
	Close() error
}

package ingestion

import (
	"context"

	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

// peekable lets sampleSchema return the rows it consumed for schema
// discovery back to the front of the stream, so PeekSchema never skips
// rows Next() would otherwise have yielded.
type peekable interface {
	pushBack(rows []map[string]string)
}

// sampleSchema reads up to n rows to discover columns and their inferred
// type, then restores them for subsequent Next calls when src is peekable.
func sampleSchema(ctx context.Context, src driven.RowSource, n int) ([]driven.ColumnDescriptor, error) {
	rows := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		row, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}

	if p, ok := src.(peekable); ok {
		p.pushBack(rows)
	}

	return describeColumns(rows), nil
}

func describeColumns(rows []map[string]string) []driven.ColumnDescriptor {
	order := columnOrder(rows)
	descs := make([]driven.ColumnDescriptor, 0, len(order))
	for _, name := range order {
		descs = append(descs, driven.ColumnDescriptor{Name: name, Type: inferType(rows, name)})
	}
	return descs
}

// columnOrder returns column names in first-seen order across the sample,
// which is what breaks auto-detection ties by "column order".
func columnOrder(rows []map[string]string) []string {
	seen := map[string]bool{}
	var order []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	return order
}

func inferType(rows []map[string]string, name string) driven.ColumnType {
	seen := 0
	allBool, allNumeric := true, true
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == "" {
			continue
		}
		seen++
		if v != "true" && v != "false" {
			allBool = false
		}
		if !isNumeric(v) {
			allNumeric = false
		}
	}
	switch {
	case seen == 0:
		return driven.ColumnUnknown
	case allBool:
		return driven.ColumnBool
	case allNumeric:
		return driven.ColumnNumber
	default:
		return driven.ColumnString
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		switch {
		case r == '-' && i == 0:
		case r == '.' && !dot:
			dot = true
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// DetectTextColumnFromSource samples up to n rows from src, applies the
// auto-detection rule over the string columns, and pushes the sample back
// so the stream is not consumed. Returns "" when no string column exists.
func DetectTextColumnFromSource(ctx context.Context, src driven.RowSource, n int) (string, error) {
	rows := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		row, ok, err := src.Next(ctx)
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if p, ok := src.(peekable); ok {
		p.pushBack(rows)
	}

	order := columnOrder(rows)
	stringCols := make([]string, 0, len(order))
	for _, name := range order {
		if inferType(rows, name) == driven.ColumnString {
			stringCols = append(stringCols, name)
		}
	}
	return DetectTextColumn(rows, stringCols), nil
}

// DetectTextColumn implements the auto-detection rule: the string
// column with the largest average character length over the sample, ties
// broken by column order.
func DetectTextColumn(rows []map[string]string, order []string) string {
	best := ""
	bestAvg := -1.0
	for _, name := range order {
		total, count := 0, 0
		for _, row := range rows {
			v, ok := row[name]
			if !ok {
				continue
			}
			total += len([]rune(v))
			count++
		}
		if count == 0 {
			continue
		}
		avg := float64(total) / float64(count)
		if avg > bestAvg {
			bestAvg = avg
			best = name
		}
	}
	return best
}

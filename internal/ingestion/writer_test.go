package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/entropyguard/entropyguard/internal/core/domain"
)

func TestNDJSONSinkWritesOneObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	sink, err := NewNDJSONSink(path, "text")
	if err != nil {
		t.Fatal(err)
	}

	recs := []domain.Record{
		{OriginalIndex: 0, Text: "first", Passthrough: map[string]string{"id": "a"}, ChunkPosition: -1},
		{OriginalIndex: 2, Text: "second", ChunkPosition: -1},
	}
	for _, rec := range recs {
		if err := sink.Write(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if sink.Rows() != 2 {
		t.Errorf("rows = %d", sink.Rows())
	}

	f, _ := os.Open(path)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines []map[string]string
	for scanner.Scan() {
		var row map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		lines = append(lines, row)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0]["text"] != "first" || lines[0]["id"] != "a" || lines[0]["original_index"] != "0" {
		t.Errorf("line 0 = %v", lines[0])
	}
	if _, hasChunk := lines[0]["chunk_position"]; hasChunk {
		t.Error("unchunked record carries chunk_position")
	}
}

func TestNDJSONSinkChunkPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	sink, _ := NewNDJSONSink(path, "text")

	rec := domain.Record{OriginalIndex: 1, Text: "chunked", ChunkPosition: 3}
	if err := sink.Write(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	sink.Close()

	data, _ := os.ReadFile(path)
	var row map[string]string
	if err := json.Unmarshal(data, &row); err != nil {
		t.Fatal(err)
	}
	if row["chunk_position"] != "3" {
		t.Errorf("chunk_position = %q", row["chunk_position"])
	}
}

func TestNDJSONSinkDefaultsTextColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	sink, _ := NewNDJSONSink(path, "")
	sink.Write(context.Background(), domain.Record{Text: "x", ChunkPosition: -1})
	sink.Close()

	data, _ := os.ReadFile(path)
	var row map[string]string
	json.Unmarshal(data, &row)
	if row["text"] != "x" {
		t.Errorf("row = %v", row)
	}
}

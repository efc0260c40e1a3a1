package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tgscraper/pkg/config"
	"tgscraper/pkg/logger"
)

func testWriter(t *testing.T, format string) *Writer {
	t.Helper()

	log, err := logger.New(&config.LoggingConfig{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	w, err := NewWriter(t.TempDir(), format, log)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	w.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return w
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	log, err := logger.New(&config.LoggingConfig{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	if _, err := NewWriter(t.TempDir(), "pdf", log); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestWriteCSV(t *testing.T) {
	w := testWriter(t, FormatCSV)

	path, err := w.Write(Batch{
		Prefix: "alpha_messages",
		Header: []string{"id", "text"},
		Rows: [][]string{
			{"2", "hello"},
			{"1", "wörld, with commas"},
		},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if filepath.Base(path) != "alpha_messages_20240315_103000.csv" {
		t.Errorf("Unexpected artifact name: %s", filepath.Base(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}

	if !bytes.HasPrefix(content, utf8BOM) {
		t.Error("Expected UTF-8 BOM at start of CSV file")
	}

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM))).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d records", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "text" {
		t.Errorf("Unexpected header: %v", records[0])
	}
	if records[2][1] != "wörld, with commas" {
		t.Errorf("Quoting or encoding lost data: %q", records[2][1])
	}
}

func TestWriteEmptyBatch(t *testing.T) {
	w := testWriter(t, FormatCSV)

	path, err := w.Write(Batch{
		Prefix: "empty",
		Header: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Empty batch must not fail: %v", err)
	}
	if path != "" {
		t.Errorf("Empty batch must not produce a file, got %s", path)
	}

	entries, _ := os.ReadDir(w.dir)
	if len(entries) != 0 {
		t.Errorf("Expected no files in output directory, found %d", len(entries))
	}
}

func TestWriteCollisionSuffix(t *testing.T) {
	w := testWriter(t, FormatCSV)

	batch := Batch{
		Prefix: "alpha_messages",
		Header: []string{"id"},
		Rows:   [][]string{{"1"}},
	}

	first, err := w.Write(batch)
	if err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	second, err := w.Write(batch)
	if err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	if first == second {
		t.Fatal("Colliding writes must produce distinct paths")
	}
	if !strings.HasSuffix(second, "_1.csv") {
		t.Errorf("Expected numeric suffix on collision, got %s", second)
	}
}

func TestWriteXLSX(t *testing.T) {
	w := testWriter(t, FormatXLSX)

	path, err := w.Write(Batch{
		Prefix: "info",
		Header: []string{"id", "title"},
		Rows:   [][]string{{"7", "Channel"}},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if filepath.Ext(path) != ".xlsx" {
		t.Errorf("Expected .xlsx extension, got %s", path)
	}
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Artifact missing: %v", err)
	}
	if stat.Size() == 0 {
		t.Error("Artifact is empty")
	}
}

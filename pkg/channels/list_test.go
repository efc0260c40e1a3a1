package channels

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tgscraper/pkg/config"
	errs "tgscraper/pkg/errors"
	"tgscraper/pkg/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := logger.New(&config.LoggingConfig{Level: "error"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func TestReadFiltersBlankAndCommentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	content := "# comment line\n\n@alpha\n  beta  \n\n# another comment\ngamma\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}

	handles, err := Read(path, testLogger(t))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	expected := []string{"@alpha", "beta", "gamma"}
	if !reflect.DeepEqual(handles, expected) {
		t.Errorf("Expected %v, got %v", expected, handles)
	}
}

func TestReadEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(path, []byte("# only comments\n\n"), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}

	handles, err := Read(path, testLogger(t))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(handles) != 0 {
		t.Errorf("Expected no handles, got %v", handles)
	}
}

func TestReadCreatesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")

	_, err := Read(path, testLogger(t))
	if err == nil {
		t.Fatal("Expected configuration error for missing list")
	}
	if errs.TypeOf(err) != errs.ErrorTypeConfig {
		t.Errorf("Expected config error type, got %s", errs.TypeOf(err))
	}

	content, rerr := os.ReadFile(path)
	if rerr != nil {
		t.Fatalf("Template was not created: %v", rerr)
	}
	if string(content) != listTemplate {
		t.Errorf("Unexpected template content: %q", content)
	}

	// A second read of the still-empty template succeeds with no handles
	handles, err := Read(path, testLogger(t))
	if err != nil {
		t.Fatalf("Second read failed: %v", err)
	}
	if len(handles) != 0 {
		t.Errorf("Template must contain no handles, got %v", handles)
	}
}
